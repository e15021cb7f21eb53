package multigrid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/espoisson/boundary"
	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/operator"
)

// BoundaryPolicy selects how each coarse level obtains its boundary
// flux field. How Neumann data should travel down a hierarchy is an
// open modeling question; both policies keep Gauss's law exact at
// every resolution, so the choice is left to experimentation.
type BoundaryPolicy string

const (
	// RecomputeFlux rebuilds the point-charge flux analytically on
	// each level's own geometry, with its own Gauss-law rescale.
	RecomputeFlux BoundaryPolicy = "recompute"
	// RestrictFlux area-averages the finest flux field down the
	// hierarchy. The averaging over the four fine faces composing a
	// coarse face preserves the surface integral exactly.
	RestrictFlux BoundaryPolicy = "restrict"
)

// ParseBoundaryPolicy resolves a configuration string.
func ParseBoundaryPolicy(name string) (BoundaryPolicy, error) {
	switch BoundaryPolicy(name) {
	case RecomputeFlux, RestrictFlux:
		return BoundaryPolicy(name), nil
	}
	return "", fmt.Errorf("multigrid: unknown boundary policy %q: %w", name, grid.ErrConfiguration)
}

// Level is one resolution of the hierarchy with its own geometry,
// flux field, stencil and work fields. Fields of one level are touched
// only through the restriction and prolongation operators of its
// neighbors.
type Level struct {
	Grid    grid.Grid
	Flux    *boundary.FluxField
	Stencil *operator.Stencil

	// Work fields owned by the level during a solve.
	Phi, Rhs, Res, tmp []float64
}

// Hierarchy is an ordered sequence of grids from finest (Levels[0]) to
// coarsest, each half the linear resolution of its parent. It is built
// once per multigrid solve and discarded afterwards.
type Hierarchy struct {
	Levels  []*Level
	Nucleus [3]float64
	Charge  float64
	Policy  BoundaryPolicy

	// Dense operator of the coarsest level, Laplacian couplings only:
	// coarse levels solve residual correction equations, whose
	// boundary data is homogeneous.
	coarse *mat.Dense
}

// NewHierarchy builds the grid hierarchy for a finest grid g. g.Size
// must equal coarsestSize * 2^k for some k >= 0, with coarsestSize at
// least 2 so the coarsest operator retains boundary coupling.
func NewHierarchy(g grid.Grid, nucleus [3]float64, charge float64, coarsestSize int, policy BoundaryPolicy) (*Hierarchy, error) {
	if coarsestSize < 2 {
		return nil, fmt.Errorf("multigrid: coarsest size must be >= 2, got %d: %w", coarsestSize, grid.ErrConfiguration)
	}
	size := g.Size
	levels := 1
	for size > coarsestSize {
		if size%2 != 0 {
			return nil, fmt.Errorf("multigrid: grid size %d is not coarsestSize %d times a power of two: %w",
				g.Size, coarsestSize, grid.ErrConfiguration)
		}
		size /= 2
		levels++
	}
	if size != coarsestSize {
		return nil, fmt.Errorf("multigrid: grid size %d is not coarsestSize %d times a power of two: %w",
			g.Size, coarsestSize, grid.ErrConfiguration)
	}

	h := &Hierarchy{Nucleus: nucleus, Charge: charge, Policy: policy}
	for l := 0; l < levels; l++ {
		lg, err := grid.New(g.Size>>l, g.H*float64(int(1)<<l))
		if err != nil {
			return nil, err
		}
		lvl := &Level{Grid: lg}
		switch policy {
		case RecomputeFlux:
			lvl.Flux, err = boundary.Build(lg, nucleus, charge)
			if err != nil {
				return nil, err
			}
		case RestrictFlux:
			if l == 0 {
				lvl.Flux, err = boundary.Build(lg, nucleus, charge)
				if err != nil {
					return nil, err
				}
			} else {
				lvl.Flux = restrictFluxField(h.Levels[l-1].Flux, lg)
			}
		default:
			return nil, fmt.Errorf("multigrid: unknown boundary policy %q: %w", policy, grid.ErrConfiguration)
		}
		lvl.Stencil, err = operator.NewStencil(lg, lvl.Flux)
		if err != nil {
			return nil, err
		}
		n := lg.NumCells()
		lvl.Phi = make([]float64, n)
		lvl.Rhs = make([]float64, n)
		lvl.Res = make([]float64, n)
		lvl.tmp = make([]float64, n)
		h.Levels = append(h.Levels, lvl)
	}

	cg := h.Levels[len(h.Levels)-1].Grid
	coarse, err := operator.AssembleDense(cg, zeroFlux(cg))
	if err != nil {
		return nil, err
	}
	h.coarse = coarse
	return h, nil
}

// restrictFluxField area-averages a fine flux field onto the coarse
// grid: each coarse boundary face covers four fine faces, and their
// mean carries the same surface integral over the quadrupled area.
func restrictFluxField(fine *boundary.FluxField, cg grid.Grid) *boundary.FluxField {
	cf := &boundary.FluxField{
		Grid:       cg,
		Nucleus:    fine.Nucleus,
		Charge:     fine.Charge,
		Flux:       make([]boundary.FaceFlux, cg.NumCells()),
		Correction: 1,
	}
	fg := fine.Grid
	for id := range cf.Flux {
		cx, cy, cz := cg.CellIndices(id)
		for face := grid.Face(0); face < grid.NumFaces; face++ {
			if !cg.IsBoundaryFace(cx, cy, cz, face) {
				continue
			}
			// Fine children touching this coarse face: the axis
			// coordinate is pinned to the boundary side, the other
			// two take both child offsets.
			base := [3]int{2 * cx, 2 * cy, 2 * cz}
			axis := face.Axis()
			if face.Sign() > 0 {
				base[axis]++
			}
			var sum float64
			for a := 0; a < 2; a++ {
				for b := 0; b < 2; b++ {
					idx := base
					u, v := otherAxes(axis)
					idx[u] += a
					idx[v] += b
					sum += fine.Flux[fg.CellID(idx[0], idx[1], idx[2])][face]
				}
			}
			cf.Flux[id][face] = sum / 4
		}
	}
	return cf
}

func otherAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

func zeroFlux(g grid.Grid) *boundary.FluxField {
	return &boundary.FluxField{
		Grid:       g,
		Flux:       make([]boundary.FaceFlux, g.NumCells()),
		Correction: 1,
	}
}
