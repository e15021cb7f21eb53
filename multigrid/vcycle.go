package multigrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/solver"
)

// MethodName labels multigrid solves in convergence errors.
const MethodName solver.Method = "multigrid"

// ParseSmoother resolves a configuration string to a relaxation method
// usable for smoothing. Only the stationary sweeps qualify; the Krylov
// methods are whole-solve algorithms, not smoothers.
func ParseSmoother(name string) (solver.Method, error) {
	switch m := solver.Method(name); m {
	case solver.Jacobi, solver.GaussSeidel, solver.GaussSeidelRedBlack:
		return m, nil
	}
	return "", fmt.Errorf("multigrid: unknown smoother %q: %w", name, grid.ErrConfiguration)
}

// Options control a multigrid solve.
type Options struct {
	// Tolerance is the relative residual stop threshold at the
	// finest level. Defaults to 1e-6.
	Tolerance float64
	// MaxCycles is the V-cycle budget. Defaults to 50.
	MaxCycles int
	// PreSmooth and PostSmooth are the sweep counts around each
	// coarse-grid correction. Default to 2.
	PreSmooth, PostSmooth int
	// Smoother picks the relaxation used for smoothing: Jacobi,
	// GaussSeidel or GaussSeidelRedBlack. Defaults to GaussSeidel.
	Smoother solver.Method
	// Weight is the Jacobi damping factor, when Jacobi smooths.
	Weight float64
	// Prolongation selects the coarse-to-fine transfer. Defaults to
	// Trilinear.
	Prolongation Prolongation
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
	if o.MaxCycles <= 0 {
		o.MaxCycles = 50
	}
	if o.PreSmooth <= 0 {
		o.PreSmooth = 2
	}
	if o.PostSmooth <= 0 {
		o.PostSmooth = 2
	}
	if o.Smoother == "" {
		o.Smoother = solver.GaussSeidel
	}
	if o.Weight <= 0 {
		o.Weight = solver.DefaultWeight
	}
	if o.Prolongation == "" {
		o.Prolongation = Trilinear
	}
	return o
}

// Stats extends the solver statistics with the total number of
// smoothing sweeps spent across all levels, the cost measure used to
// compare multigrid against single-level relaxation.
type Stats struct {
	solver.Stats
	SmoothingSweeps int
}

// Solve runs V-cycles on the hierarchy until the finest-level residual
// meets the relative tolerance (floored at solver.ResidualFloor in
// absolute terms) or the cycle budget is exhausted, in
// which case the best iterate is returned with a *ConvergenceError.
// density is the charge density on the finest grid.
func Solve(h *Hierarchy, density []float64, opt Options) ([]float64, Stats, error) {
	opt = opt.withDefaults()
	if _, err := ParseSmoother(string(opt.Smoother)); err != nil {
		return nil, Stats{}, err
	}
	if _, err := ParseProlongation(string(opt.Prolongation)); err != nil {
		return nil, Stats{}, err
	}
	finest := h.Levels[0]
	rhs, err := finest.Stencil.RHS(density)
	if err != nil {
		return nil, Stats{}, err
	}

	n := finest.Grid.NumCells()
	phi := make([]float64, n)
	res := make([]float64, n)

	finest.Stencil.Residual(phi, rhs, res)
	norm0 := floats.Norm(res, 2)
	st := Stats{Stats: solver.Stats{
		InitialResidual: norm0,
		FinalResidual:   norm0,
		ResidualHistory: []float64{norm0},
	}}
	if norm0 <= solver.ResidualFloor {
		st.Converged = true
		return phi, st, nil
	}
	target := math.Max(opt.Tolerance*norm0, solver.ResidualFloor)

	best := make([]float64, n)
	bestNorm := norm0
	for cycle := 0; cycle < opt.MaxCycles; cycle++ {
		if err := h.vcycle(0, phi, rhs, opt, &st); err != nil {
			return nil, st, err
		}
		finest.Stencil.Residual(phi, rhs, res)
		norm := floats.Norm(res, 2)
		st.Iterations++
		st.FinalResidual = norm
		st.ResidualHistory = append(st.ResidualHistory, norm)
		if norm <= bestNorm {
			bestNorm = norm
			copy(best, phi)
		}
		if norm <= target {
			st.Converged = true
			return phi, st, nil
		}
	}
	return best, st, &solver.ConvergenceError{Method: MethodName, Stats: st.Stats}
}

// vcycle runs one V-cycle rooted at level l on the equation
// A*phi = rhs of that level. Restriction of the residual fully
// completes before the coarser level is entered, and the coarse
// correction is fully prolonged before post-smoothing starts.
func (h *Hierarchy) vcycle(l int, phi, rhs []float64, opt Options, st *Stats) error {
	lvl := h.Levels[l]

	if l == len(h.Levels)-1 {
		// Coarsest level: exact solve of the correction equation.
		// The mean of the correction is projected out so the Neumann
		// gauge freedom cannot drift between cycles.
		sol, err := solver.Direct(lvl.Grid, h.coarse, rhs)
		if err != nil {
			return err
		}
		mean := floats.Sum(sol) / float64(len(sol))
		for i := range sol {
			phi[i] = sol[i] - mean
		}
		return nil
	}

	next := h.Levels[l+1]

	h.smooth(lvl, phi, rhs, opt.PreSmooth, opt, st)

	lvl.Stencil.Residual(phi, rhs, lvl.Res)
	Restrict(lvl.Grid, next.Grid, lvl.Res, next.Rhs)

	for i := range next.Phi {
		next.Phi[i] = 0
	}
	if err := h.vcycle(l+1, next.Phi, next.Rhs, opt, st); err != nil {
		return err
	}

	Prolong(next.Grid, lvl.Grid, next.Phi, lvl.tmp, opt.Prolongation)
	floats.Add(phi, lvl.tmp)

	h.smooth(lvl, phi, rhs, opt.PostSmooth, opt, st)
	return nil
}

func (h *Hierarchy) smooth(lvl *Level, phi, rhs []float64, sweeps int, opt Options, st *Stats) {
	for s := 0; s < sweeps; s++ {
		switch opt.Smoother {
		case solver.Jacobi:
			solver.JacobiSweep(lvl.Stencil, phi, lvl.tmp, rhs, opt.Weight)
			copy(phi, lvl.tmp)
		case solver.GaussSeidel:
			solver.GaussSeidelSweep(lvl.Stencil, phi, rhs)
		case solver.GaussSeidelRedBlack:
			solver.RedBlackSweep(lvl.Stencil, phi, rhs)
		default:
			// Solve rejects anything else before cycling starts.
			panic(fmt.Sprintf("multigrid: smoother %q passed validation", opt.Smoother))
		}
		st.SmoothingSweeps++
	}
}
