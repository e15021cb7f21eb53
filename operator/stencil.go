package operator

import (
	"fmt"

	"github.com/notargets/espoisson/boundary"
	"github.com/notargets/espoisson/grid"
)

// Stencil is the implicit form of the discrete Laplacian with Neumann
// boundary data: it applies the operator cell by cell without ever
// materializing the matrix. The iterative and multigrid solvers run
// entirely on this form.
//
// The equation solved is, per cell,
//
//	sum_over_linked_faces (phi[n] - phi[c]) / H^2 = rhs[c]
//
// where rhs carries both the charge density and, for boundary cells,
// the Neumann flux term flux/H (see RHS). Interior couplings are
// symmetric, 1/H^2 in both directions.
type Stencil struct {
	G    grid.Grid
	Flux *boundary.FluxField

	invH2 float64
}

// NewStencil binds a flux field to its grid. The flux field must have
// been built for the same geometry.
func NewStencil(g grid.Grid, flux *boundary.FluxField) (*Stencil, error) {
	// A single-cell grid has no interior links, so every diagonal
	// entry would be zero and the sweeps would divide by it.
	if g.Size < 2 || g.H <= 0 {
		return nil, fmt.Errorf("operator: grid needs at least 2 cells per axis and positive spacing, got %dx%g: %w",
			g.Size, g.H, grid.ErrConfiguration)
	}
	if flux == nil || flux.Grid != g {
		return nil, fmt.Errorf("operator: flux field geometry does not match grid: %w", grid.ErrConfiguration)
	}
	if len(flux.Flux) != g.NumCells() {
		return nil, fmt.Errorf("operator: flux field has %d cells, grid has %d: %w",
			len(flux.Flux), g.NumCells(), grid.ErrConfiguration)
	}
	return &Stencil{G: g, Flux: flux, invH2: 1 / (g.H * g.H)}, nil
}

// NumCells returns the number of unknowns the stencil acts on.
func (s *Stencil) NumCells() int { return s.G.NumCells() }

// Diagonal returns the diagonal coefficient of the given cell,
// -(linked neighbor count)/H^2.
func (s *Stencil) Diagonal(id int) float64 {
	ix, iy, iz := s.G.CellIndices(id)
	linked := 0
	for face := grid.Face(0); face < grid.NumFaces; face++ {
		if _, _, _, ok := s.G.Neighbor(ix, iy, iz, face); ok {
			linked++
		}
	}
	return -float64(linked) * s.invH2
}

// ApplyAt evaluates one row of the operator: the discrete Laplacian of
// phi at cell id.
func (s *Stencil) ApplyAt(phi []float64, id int) float64 {
	ix, iy, iz := s.G.CellIndices(id)
	var acc float64
	for face := grid.Face(0); face < grid.NumFaces; face++ {
		jx, jy, jz, ok := s.G.Neighbor(ix, iy, iz, face)
		if !ok {
			continue
		}
		acc += (phi[s.G.CellID(jx, jy, jz)] - phi[id]) * s.invH2
	}
	return acc
}

// Apply evaluates out = A*phi over all cells. out must have length
// NumCells and may not alias phi.
func (s *Stencil) Apply(phi, out []float64) {
	for id := range out {
		out[id] = s.ApplyAt(phi, id)
	}
}

// RHS builds the full right-hand side for a charge density field:
// rhs[c] = density[c] + sum over boundary faces of flux/H. The flux
// term is the additive form of the Neumann condition; with the
// Gauss-law rescale applied by the boundary builder, the resulting
// system is compatible (the right-hand side sums to zero).
func (s *Stencil) RHS(density []float64) ([]float64, error) {
	if len(density) != s.NumCells() {
		return nil, fmt.Errorf("operator: density has %d cells, grid has %d: %w",
			len(density), s.NumCells(), grid.ErrConfiguration)
	}
	rhs := make([]float64, s.NumCells())
	for id := range rhs {
		rhs[id] = density[id] + s.fluxTerm(id)
	}
	return rhs, nil
}

// fluxTerm returns the summed boundary contribution flux/H of cell id.
func (s *Stencil) fluxTerm(id int) float64 {
	var acc float64
	for face := grid.Face(0); face < grid.NumFaces; face++ {
		acc += s.Flux.Flux[id][face]
	}
	return acc / s.G.H
}

// Residual evaluates out = rhs - A*phi. out may alias rhs but not phi.
func (s *Stencil) Residual(phi, rhs, out []float64) {
	for id := range out {
		out[id] = rhs[id] - s.ApplyAt(phi, id)
	}
}
