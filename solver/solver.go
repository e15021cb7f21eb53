package solver

import (
	"fmt"

	"github.com/notargets/espoisson/grid"
)

// Method names an iterative relaxation scheme.
type Method string

const (
	Jacobi              Method = "jacobi"
	GaussSeidel         Method = "gauss-seidel"
	GaussSeidelRedBlack Method = "gauss-seidel-rb"
	SteepestDescent     Method = "steepest-descent"
	ConjugateGradient   Method = "cg"
)

// Methods lists every registered iterative method.
var Methods = []Method{Jacobi, GaussSeidel, GaussSeidelRedBlack, SteepestDescent, ConjugateGradient}

// ParseMethod resolves a configuration string to a Method.
func ParseMethod(name string) (Method, error) {
	for _, m := range Methods {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("solver: unknown method %q: %w", name, grid.ErrConfiguration)
}

// DefaultWeight is the damping factor used by weighted Jacobi when the
// caller does not set one. 2/3 keeps the sweep contractive for the
// 7-point Laplacian (the spectral radius bound allows up to 1) and is
// the classical choice for Jacobi as a multigrid smoother.
const DefaultWeight = 2.0 / 3.0

// ResidualFloor is the absolute residual 2-norm below which a solve is
// considered converged regardless of the relative criterion. A
// right-hand side can cancel to pure roundoff — a symmetric charge
// whose density and boundary flux terms annihilate cell by cell — and
// a purely relative test against such a roundoff-scale initial
// residual would chase noise the arithmetic cannot deliver.
const ResidualFloor = 1e-12

// Options control an iterative solve.
type Options struct {
	// Tolerance is the relative residual stop threshold: iteration
	// ends once ||r|| <= Tolerance * ||r0||. Defaults to 1e-6.
	Tolerance float64
	// MaxIterations is the sweep budget. Defaults to 10000.
	MaxIterations int
	// Weight is the Jacobi damping factor. Defaults to DefaultWeight.
	// Ignored by the other methods.
	Weight float64
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10000
	}
	if o.Weight <= 0 {
		o.Weight = DefaultWeight
	}
	return o
}

// Stats reports how a solve went. It replaces any in-solver printing
// or profiling: observability is the caller's concern.
type Stats struct {
	Iterations      int
	Converged       bool
	InitialResidual float64
	FinalResidual   float64
	// ResidualHistory holds the residual 2-norm after every sweep,
	// starting with the initial residual.
	ResidualHistory []float64
}

// SingularError reports that the direct solver found the assembled
// operator numerically singular.
type SingularError struct {
	Cause error
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("solver: operator is numerically singular: %v", e.Cause)
}

func (e *SingularError) Unwrap() error { return e.Cause }

// ConvergenceError reports an iterative solve that exhausted its
// budget before reaching tolerance. The best iterate found is still
// returned by the solve call alongside this error.
type ConvergenceError struct {
	Method Method
	Stats  Stats
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("solver: %s did not converge in %d iterations (residual %.3e of %.3e, tolerance not met)",
		e.Method, e.Stats.Iterations, e.Stats.FinalResidual, e.Stats.InitialResidual)
}
