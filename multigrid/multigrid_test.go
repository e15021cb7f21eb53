package multigrid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/espoisson/boundary"
	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/operator"
	"github.com/notargets/espoisson/solver"
)

// centeredProblem puts charge Q at the domain center with the matching
// density field: concentrated in the middle cell for odd sizes, spread
// over the eight cells around the center corner for even sizes.
func centeredProblem(t *testing.T, size int, h, charge float64) (grid.Grid, [3]float64, []float64) {
	t.Helper()
	g, err := grid.New(size, h)
	require.NoError(t, err)
	half := float64(size) * h / 2
	nucleus := [3]float64{half, half, half}

	density := make([]float64, g.NumCells())
	total := 4 * math.Pi * charge / g.CellVolume()
	if size%2 == 1 {
		mid := size / 2
		density[g.CellID(mid, mid, mid)] = total
	} else {
		lo := size/2 - 1
		for dz := 0; dz < 2; dz++ {
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					density[g.CellID(lo+dx, lo+dy, lo+dz)] = total / 8
				}
			}
		}
	}
	return g, nucleus, density
}

func shifted(phi []float64) []float64 {
	mean := floats.Sum(phi) / float64(len(phi))
	out := make([]float64, len(phi))
	for i, v := range phi {
		out[i] = v - mean
	}
	return out
}

func TestHierarchyValidation(t *testing.T) {
	g, err := grid.New(8, 0.25)
	require.NoError(t, err)
	nucleus := [3]float64{1, 1, 1}

	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)
	require.Len(t, h.Levels, 3)
	assert.Equal(t, 8, h.Levels[0].Grid.Size)
	assert.Equal(t, 4, h.Levels[1].Grid.Size)
	assert.Equal(t, 2, h.Levels[2].Grid.Size)
	assert.InDelta(t, 0.25, h.Levels[0].Grid.H, 1e-15)
	assert.InDelta(t, 1.0, h.Levels[2].Grid.H, 1e-15)

	g3, err := grid.New(3, 1.0)
	require.NoError(t, err)
	_, err = NewHierarchy(g3, nucleus, 1, 2, RecomputeFlux)
	assert.ErrorIs(t, err, grid.ErrConfiguration, "3 is not 2 times a power of two")

	g6, err := grid.New(6, 0.5)
	require.NoError(t, err)
	_, err = NewHierarchy(g6, nucleus, 1, 4, RecomputeFlux)
	assert.ErrorIs(t, err, grid.ErrConfiguration)

	_, err = NewHierarchy(g, nucleus, 1, 1, RecomputeFlux)
	assert.ErrorIs(t, err, grid.ErrConfiguration, "coarsest size 1 has no boundary coupling")

	_, err = NewHierarchy(g, nucleus, 1, 2, BoundaryPolicy("extrapolate"))
	assert.ErrorIs(t, err, grid.ErrConfiguration)
}

func TestGaussLawPerLevel(t *testing.T) {
	g, nucleus, _ := centeredProblem(t, 8, 0.25, 2.5)
	expected := -4 * math.Pi * 2.5

	for _, policy := range []BoundaryPolicy{RecomputeFlux, RestrictFlux} {
		t.Run(string(policy), func(t *testing.T) {
			h, err := NewHierarchy(g, nucleus, 2.5, 2, policy)
			require.NoError(t, err)
			for l, lvl := range h.Levels {
				assert.InEpsilon(t, expected, lvl.Flux.SurfaceIntegral(), 1e-12,
					"Gauss's law must hold on level %d", l)
			}
		})
	}
}

func TestRestrictAndProlong(t *testing.T) {
	fine, err := grid.New(4, 0.5)
	require.NoError(t, err)
	coarse, err := grid.New(2, 1.0)
	require.NoError(t, err)

	// Restriction preserves the volume integral: the coarse sum is
	// one eighth of the fine sum.
	src := make([]float64, fine.NumCells())
	for i := range src {
		src[i] = float64(i%7) - 3
	}
	dst := make([]float64, coarse.NumCells())
	Restrict(fine, coarse, src, dst)
	assert.InDelta(t, floats.Sum(src)/8, floats.Sum(dst), 1e-12)

	// Both prolongations reproduce constants exactly.
	csrc := make([]float64, coarse.NumCells())
	for i := range csrc {
		csrc[i] = 2.5
	}
	fdst := make([]float64, fine.NumCells())
	for _, mode := range []Prolongation{Injection, Trilinear} {
		Prolong(coarse, fine, csrc, fdst, mode)
		for i, v := range fdst {
			assert.InDelta(t, 2.5, v, 1e-14, "%s cell %d", mode, i)
		}
	}

	// Injection copies the parent value.
	for i := range csrc {
		csrc[i] = float64(i)
	}
	Prolong(coarse, fine, csrc, fdst, Injection)
	for id := range fdst {
		fx, fy, fz := fine.CellIndices(id)
		assert.Equal(t, csrc[coarse.CellID(fx/2, fy/2, fz/2)], fdst[id])
	}
}

func TestVCycleMatchesDirect(t *testing.T) {
	g, nucleus, density := centeredProblem(t, 4, 0.5, 1)

	flux, err := boundary.Build(g, nucleus, 1)
	require.NoError(t, err)
	a, err := operator.AssembleDense(g, flux)
	require.NoError(t, err)
	ref, err := solver.Direct(g, a, density)
	require.NoError(t, err)
	refShifted := shifted(ref)

	for _, policy := range []BoundaryPolicy{RecomputeFlux, RestrictFlux} {
		for _, mode := range []Prolongation{Injection, Trilinear} {
			t.Run(string(policy)+"/"+string(mode), func(t *testing.T) {
				h, err := NewHierarchy(g, nucleus, 1, 2, policy)
				require.NoError(t, err)
				phi, stats, err := Solve(h, density, Options{Tolerance: 1e-8, MaxCycles: 200, Prolongation: mode})
				require.NoError(t, err)
				assert.True(t, stats.Converged)

				got := shifted(phi)
				for i := range got {
					assert.InDelta(t, refShifted[i], got[i], 1e-5, "cell %d", i)
				}
			})
		}
	}
}

func TestSmootherChoices(t *testing.T) {
	g, nucleus, density := centeredProblem(t, 8, 0.25, 1)
	for _, smoother := range []solver.Method{solver.Jacobi, solver.GaussSeidel, solver.GaussSeidelRedBlack} {
		t.Run(string(smoother), func(t *testing.T) {
			h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
			require.NoError(t, err)
			_, stats, err := Solve(h, density, Options{Tolerance: 1e-6, MaxCycles: 100, Smoother: smoother})
			require.NoError(t, err)
			assert.True(t, stats.Converged)
		})
	}
}

func TestMultigridBeatsSingleLevelRelaxation(t *testing.T) {
	g, nucleus, density := centeredProblem(t, 8, 0.25, 1)

	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)
	_, mgStats, err := Solve(h, density, Options{Tolerance: 1e-8, MaxCycles: 100})
	require.NoError(t, err)
	require.True(t, mgStats.Converged)

	st := h.Levels[0].Stencil
	_, gsStats, err := solver.Solve(solver.GaussSeidel, st, density, solver.Options{Tolerance: 1e-8, MaxIterations: 100000})
	require.NoError(t, err)
	require.True(t, gsStats.Converged)

	assert.Less(t, mgStats.SmoothingSweeps, gsStats.Iterations,
		"multigrid (%d sweeps) should need fewer smoothing sweeps than plain Gauss-Seidel (%d)",
		mgStats.SmoothingSweeps, gsStats.Iterations)
}

func TestMultigridNonConvergence(t *testing.T) {
	g, nucleus, density := centeredProblem(t, 8, 0.25, 1)
	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)

	phi, stats, err := Solve(h, density, Options{Tolerance: 1e-14, MaxCycles: 1})
	require.Error(t, err)

	var nc *solver.ConvergenceError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, MethodName, nc.Method)
	assert.False(t, stats.Converged)
	assert.Equal(t, 1, stats.Iterations)
	require.NotNil(t, phi)
	assert.Len(t, phi, g.NumCells())
}

func TestSingleLevelHierarchy(t *testing.T) {
	// Finest == coarsest reduces the V-cycle to the direct solve. The
	// charge sits inside a corner cell so the right-hand side does not
	// cancel by symmetry.
	g, err := grid.New(2, 1.0)
	require.NoError(t, err)
	nucleus := [3]float64{0.5, 0.5, 0.5}
	density := make([]float64, g.NumCells())
	density[0] = 4 * math.Pi / g.CellVolume()

	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)
	require.Len(t, h.Levels, 1)

	_, stats, err := Solve(h, density, Options{Tolerance: 1e-8, MaxCycles: 5})
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.Equal(t, 1, stats.Iterations)
}

func TestRoundoffRightHandSide(t *testing.T) {
	// On the symmetric 2x2x2 problem the density and the boundary flux
	// terms cancel cell by cell, leaving a right-hand side of pure
	// roundoff. The solve must report convergence immediately instead
	// of chasing noise against a roundoff-scale initial residual.
	g, nucleus, density := centeredProblem(t, 2, 1.0, 1)
	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)

	phi, stats, err := Solve(h, density, Options{Tolerance: 1e-8, MaxCycles: 5})
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.Equal(t, 0, stats.Iterations)
	assert.LessOrEqual(t, stats.InitialResidual, solver.ResidualFloor)
	assert.Len(t, phi, g.NumCells())
}

func TestRejectsUnknownOptions(t *testing.T) {
	g, nucleus, density := centeredProblem(t, 4, 0.5, 1)
	h, err := NewHierarchy(g, nucleus, 1, 2, RecomputeFlux)
	require.NoError(t, err)

	_, _, err = Solve(h, density, Options{Smoother: solver.Method("sor")})
	assert.ErrorIs(t, err, grid.ErrConfiguration)

	// Krylov methods are full solves, not smoothers.
	_, _, err = Solve(h, density, Options{Smoother: solver.ConjugateGradient})
	assert.ErrorIs(t, err, grid.ErrConfiguration)

	_, _, err = Solve(h, density, Options{Prolongation: Prolongation("quadratic")})
	assert.ErrorIs(t, err, grid.ErrConfiguration)

	_, err = ParseSmoother(string(solver.SteepestDescent))
	assert.ErrorIs(t, err, grid.ErrConfiguration)
	m, err := ParseSmoother(string(solver.GaussSeidelRedBlack))
	require.NoError(t, err)
	assert.Equal(t, solver.GaussSeidelRedBlack, m)
}
