package boundary

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/espoisson/grid"
)

func mustGrid(t *testing.T, size int, h float64) grid.Grid {
	t.Helper()
	g, err := grid.New(size, h)
	require.NoError(t, err)
	return g
}

func TestGaussLaw(t *testing.T) {
	cases := []struct {
		size    int
		h       float64
		nucleus [3]float64
		charge  float64
	}{
		{3, 2.0 / 3.0, [3]float64{1, 1, 1}, 1},
		{3, 2.0 / 3.0, [3]float64{1, 1, 1}, -2},
		{4, 0.5, [3]float64{1, 1, 1}, 1},
		{5, 0.1, [3]float64{0.21, 0.17, 0.34}, 3.5},
		{2, 1.25, [3]float64{1.3, 1.1, 0.9}, 0.25},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("size=%d_q=%g", tc.size, tc.charge), func(t *testing.T) {
			g := mustGrid(t, tc.size, tc.h)
			f, err := Build(g, tc.nucleus, tc.charge)
			require.NoError(t, err)

			expected := -4 * math.Pi * tc.charge
			got := f.SurfaceIntegral()
			assert.InEpsilon(t, expected, got, 1e-12,
				"surface integral %g must match -4*pi*Q=%g after rescale", got, expected)
		})
	}
}

func TestInteriorFacesZero(t *testing.T) {
	g := mustGrid(t, 4, 0.5)
	f, err := Build(g, [3]float64{1, 1, 1}, 1)
	require.NoError(t, err)

	for id := 0; id < g.NumCells(); id++ {
		ix, iy, iz := g.CellIndices(id)
		for face := grid.Face(0); face < grid.NumFaces; face++ {
			if g.IsBoundaryFace(ix, iy, iz, face) {
				continue
			}
			assert.Zero(t, f.At(id, face),
				"cell %d face %s is interior but has flux", id, face)
		}
	}
}

func TestOutwardFluxSign(t *testing.T) {
	// Positive charge inside the domain: the field points toward the
	// nucleus everywhere, so every boundary face sees strictly
	// negative outward flux.
	g := mustGrid(t, 3, 2.0/3.0)
	f, err := Build(g, [3]float64{1, 1, 1}, 1)
	require.NoError(t, err)

	for id := 0; id < g.NumCells(); id++ {
		ix, iy, iz := g.CellIndices(id)
		for face := grid.Face(0); face < grid.NumFaces; face++ {
			if !g.IsBoundaryFace(ix, iy, iz, face) {
				continue
			}
			assert.Negative(t, f.At(id, face), "cell %d face %s", id, face)
		}
	}
}

func TestDegenerateNucleus(t *testing.T) {
	g := mustGrid(t, 2, 1.0)
	// Center of the -X face of cell (0,0,0).
	_, err := Build(g, [3]float64{0, 0.5, 0.5}, 1)
	require.Error(t, err)

	var degenerate *DegenerateGeometryError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, grid.XMin, degenerate.Face)
}

func TestZeroCharge(t *testing.T) {
	g := mustGrid(t, 3, 1.0)
	f, err := Build(g, [3]float64{1.5, 1.5, 1.5}, 0)
	require.NoError(t, err)
	assert.Zero(t, f.SurfaceIntegral())
	for id := range f.Flux {
		for face := range f.Flux[id] {
			assert.Zero(t, f.Flux[id][face])
		}
	}
}

func TestCorrectionIsModest(t *testing.T) {
	// The face-center sampling error shrinks with resolution, so the
	// rescale factor must stay near one and approach it as the grid
	// refines.
	g3 := mustGrid(t, 3, 2.0/3.0)
	f3, err := Build(g3, [3]float64{1, 1, 1}, 1)
	require.NoError(t, err)

	g12 := mustGrid(t, 12, 1.0/6.0)
	f12, err := Build(g12, [3]float64{1, 1, 1}, 1)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, f3.Correction, 0.2)
	assert.InDelta(t, 1.0, f12.Correction, 0.2)
	assert.Less(t, math.Abs(f12.Correction-1), math.Abs(f3.Correction-1))
}
