package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/operator"
)

// Direct solves the padded dense system exactly by LU decomposition
// with partial pivoting and returns the cell unknowns. It is the
// reference solver: cubic cost restricts it to small grids, where its
// output is the ground truth the iterative family is validated
// against.
//
// The pure-Neumann cell block fixes the potential only up to an
// additive constant; callers comparing solutions from different
// solvers should compare mean-shifted fields.
func Direct(g grid.Grid, a *mat.Dense, density []float64) ([]float64, error) {
	b, err := operator.DenseRHS(g, density)
	if err != nil {
		return nil, err
	}

	var lu mat.LU
	lu.Factorize(a)

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		// A finite Condition error is a near-singularity warning with
		// a valid result; the Neumann gauge freedom makes it expected
		// here. An infinite condition number or any other error means
		// the factorization broke down.
		cond, warning := err.(mat.Condition)
		if !warning || math.IsInf(float64(cond), 1) {
			return nil, &SingularError{Cause: err}
		}
	}

	n := g.NumCells()
	phi := make([]float64, n)
	for id := range phi {
		phi[id] = x.AtVec(id)
	}
	return phi, nil
}
