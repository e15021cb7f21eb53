package multigrid

import (
	"fmt"
	"math"

	"github.com/notargets/espoisson/grid"
)

// Prolongation selects the coarse-to-fine transfer.
type Prolongation string

const (
	// Injection copies each coarse value to its eight child cells.
	Injection Prolongation = "injection"
	// Trilinear interpolates between the surrounding coarse cell
	// centers, clamped at the domain boundary.
	Trilinear Prolongation = "trilinear"
)

// ParseProlongation resolves a configuration string.
func ParseProlongation(name string) (Prolongation, error) {
	switch Prolongation(name) {
	case Injection, Trilinear:
		return Prolongation(name), nil
	}
	return "", fmt.Errorf("multigrid: unknown prolongation %q: %w", name, grid.ErrConfiguration)
}

// Restrict volume-averages a fine cell field onto the coarse grid:
// each coarse cell receives the mean of the eight fine cells that
// compose it. The coarse grid must have exactly half the linear
// resolution of the fine grid.
func Restrict(fine, coarse grid.Grid, src, dst []float64) {
	for id := range dst {
		cx, cy, cz := coarse.CellIndices(id)
		var sum float64
		for dz := 0; dz < 2; dz++ {
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					sum += src[fine.CellID(2*cx+dx, 2*cy+dy, 2*cz+dz)]
				}
			}
		}
		dst[id] = sum / 8
	}
}

// Prolong transfers a coarse cell field up to the fine grid,
// overwriting dst. mode must have passed ParseProlongation.
func Prolong(coarse, fine grid.Grid, src, dst []float64, mode Prolongation) {
	switch mode {
	case Trilinear:
		prolongTrilinear(coarse, fine, src, dst)
	case Injection:
		prolongInjection(coarse, fine, src, dst)
	default:
		panic(fmt.Sprintf("multigrid: unknown prolongation %q", mode))
	}
}

func prolongInjection(coarse, fine grid.Grid, src, dst []float64) {
	for id := range dst {
		fx, fy, fz := fine.CellIndices(id)
		dst[id] = src[coarse.CellID(fx/2, fy/2, fz/2)]
	}
}

// prolongTrilinear interpolates between coarse cell centers. A fine
// cell center at index f sits at coordinate (f+0.5)/2 - 0.5 in coarse
// index space; indices are clamped so boundary cells extrapolate
// constantly outward.
func prolongTrilinear(coarse, fine grid.Grid, src, dst []float64) {
	n := coarse.Size
	locate := func(f int) (i0, i1 int, w float64) {
		u := (float64(f)+0.5)/2 - 0.5
		fl := math.Floor(u)
		i0 = int(fl)
		i1 = i0 + 1
		w = u - fl
		if i0 < 0 {
			i0, i1, w = 0, 0, 0
		}
		if i1 > n-1 {
			i1 = n - 1
			if i0 > n-1 {
				i0 = n - 1
			}
		}
		return i0, i1, w
	}

	for id := range dst {
		fx, fy, fz := fine.CellIndices(id)
		x0, x1, wx := locate(fx)
		y0, y1, wy := locate(fy)
		z0, z1, wz := locate(fz)

		c := func(ix, iy, iz int) float64 { return src[coarse.CellID(ix, iy, iz)] }
		v00 := c(x0, y0, z0)*(1-wx) + c(x1, y0, z0)*wx
		v10 := c(x0, y1, z0)*(1-wx) + c(x1, y1, z0)*wx
		v01 := c(x0, y0, z1)*(1-wx) + c(x1, y0, z1)*wx
		v11 := c(x0, y1, z1)*(1-wx) + c(x1, y1, z1)*wx
		v0 := v00*(1-wy) + v10*wy
		v1 := v01*(1-wy) + v11*wy
		dst[id] = v0*(1-wz) + v1*wz
	}
}
