package grid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0, 1.0)
	assert.True(t, errors.Is(err, ErrConfiguration), "size 0 must be rejected")

	_, err = New(3, 0)
	assert.True(t, errors.Is(err, ErrConfiguration), "zero edge length must be rejected")

	_, err = New(3, -0.5)
	assert.True(t, errors.Is(err, ErrConfiguration), "negative edge length must be rejected")

	g, err := New(3, 2.0/3.0)
	require.NoError(t, err)
	assert.Equal(t, 27, g.NumCells())
}

func TestCellIDBijection(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			g, err := New(size, 1.0)
			require.NoError(t, err)

			seen := make(map[int]bool, g.NumCells())
			for iz := 0; iz < size; iz++ {
				for iy := 0; iy < size; iy++ {
					for ix := 0; ix < size; ix++ {
						id := g.CellID(ix, iy, iz)
						require.GreaterOrEqual(t, id, 0)
						require.Less(t, id, g.NumCells())
						require.False(t, seen[id], "id %d assigned twice", id)
						seen[id] = true

						jx, jy, jz := g.CellIndices(id)
						assert.Equal(t, [3]int{ix, iy, iz}, [3]int{jx, jy, jz})
					}
				}
			}
			assert.Len(t, seen, g.NumCells())
		})
	}
}

func TestNeighbor(t *testing.T) {
	g, err := New(3, 1.0)
	require.NoError(t, err)

	// Interior cell links to all six neighbors.
	for f := Face(0); f < NumFaces; f++ {
		_, _, _, ok := g.Neighbor(1, 1, 1, f)
		assert.True(t, ok, "interior cell missing %s neighbor", f)
		assert.False(t, g.IsBoundaryFace(1, 1, 1, f))
	}

	// Corner cell has exactly three.
	linked := 0
	for f := Face(0); f < NumFaces; f++ {
		if _, _, _, ok := g.Neighbor(0, 0, 0, f); ok {
			linked++
		}
	}
	assert.Equal(t, 3, linked)

	jx, jy, jz, ok := g.Neighbor(0, 1, 2, XPlus)
	require.True(t, ok)
	assert.Equal(t, [3]int{1, 1, 2}, [3]int{jx, jy, jz})

	_, _, _, ok = g.Neighbor(0, 1, 2, XMin)
	assert.False(t, ok)
	assert.True(t, g.IsBoundaryFace(0, 1, 2, XMin))
}

func TestFaces(t *testing.T) {
	assert.Equal(t, 0, XMin.Axis())
	assert.Equal(t, 2, ZPlus.Axis())
	assert.Equal(t, -1, YMin.Sign())
	assert.Equal(t, +1, YPlus.Sign())
	for f := Face(0); f < NumFaces; f++ {
		assert.Equal(t, f, f.Opposite().Opposite())
		assert.Equal(t, f.Axis(), f.Opposite().Axis())
		assert.Equal(t, -f.Sign(), f.Opposite().Sign())
	}
}

func TestGeometry(t *testing.T) {
	g, err := New(3, 2.0/3.0)
	require.NoError(t, err)

	x, y, z := g.CellCenter(1, 1, 1)
	assert.InDelta(t, 1.0, x, 1e-15)
	assert.InDelta(t, 1.0, y, 1e-15)
	assert.InDelta(t, 1.0, z, 1e-15)

	x, y, z = g.FaceCenter(0, 0, 0, XMin)
	assert.InDelta(t, 0.0, x, 1e-15)
	assert.InDelta(t, 1.0/3.0, y, 1e-15)
	assert.InDelta(t, 1.0/3.0, z, 1e-15)

	x, _, _ = g.FaceCenter(2, 0, 0, XPlus)
	assert.InDelta(t, 2.0, x, 1e-15)

	assert.InDelta(t, 4.0/9.0, g.FaceArea(), 1e-15)
	assert.InDelta(t, 8.0/27.0, g.CellVolume(), 1e-15)
}

func TestParity(t *testing.T) {
	g, err := New(4, 1.0)
	require.NoError(t, err)

	// Stencil-linked neighbors always have opposite color.
	for id := 0; id < g.NumCells(); id++ {
		ix, iy, iz := g.CellIndices(id)
		for f := Face(0); f < NumFaces; f++ {
			jx, jy, jz, ok := g.Neighbor(ix, iy, iz, f)
			if !ok {
				continue
			}
			assert.NotEqual(t, g.Parity(ix, iy, iz), g.Parity(jx, jy, jz))
		}
	}
}
