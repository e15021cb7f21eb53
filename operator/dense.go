package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/espoisson/boundary"
	"github.com/notargets/espoisson/grid"
)

// PaddingWidth is the number of auxiliary constraint unknowns appended
// to the dense system, 6 logical faces rounded up to the 8-wide vector
// alignment of the original formulation.
const PaddingWidth = 8

// AssembleDense builds the (N+PaddingWidth)^2 matrix form of the
// operator for the direct solver. Cell rows carry the interior
// couplings of the stencil plus, per boundary face, a coupling of
// -flux/H into the auxiliary column of that face id. The auxiliary
// rows are the identity and their unknowns are fixed to one by the
// right-hand side (see DenseRHS), so multiplying out a cell row moves
// +flux/H onto the effective right-hand side, exactly the additive
// flux term used by Stencil.RHS. The two representations are
// numerically equivalent for the same geometry and flux field.
func AssembleDense(g grid.Grid, flux *boundary.FluxField) (*mat.Dense, error) {
	s, err := NewStencil(g, flux)
	if err != nil {
		return nil, err
	}

	n := g.NumCells()
	dim := n + PaddingWidth
	a := mat.NewDense(dim, dim, nil)

	for id := 0; id < n; id++ {
		ix, iy, iz := g.CellIndices(id)
		for face := grid.Face(0); face < grid.NumFaces; face++ {
			jx, jy, jz, ok := g.Neighbor(ix, iy, iz, face)
			if ok {
				a.Set(id, g.CellID(jx, jy, jz), s.invH2)
				a.Set(id, id, a.At(id, id)-s.invH2)
				continue
			}
			col := n + int(face)
			a.Set(id, col, a.At(id, col)-flux.Flux[id][face]/g.H)
		}
	}
	for k := 0; k < PaddingWidth; k++ {
		a.Set(n+k, n+k, 1)
	}
	return a, nil
}

// DenseRHS builds the padded right-hand-side vector matching
// AssembleDense: the charge density in the cell entries and 1 in every
// auxiliary entry, pinning the constraint unknowns to one.
func DenseRHS(g grid.Grid, density []float64) (*mat.VecDense, error) {
	n := g.NumCells()
	if len(density) != n {
		return nil, fmt.Errorf("operator: density has %d cells, grid has %d: %w",
			len(density), n, grid.ErrConfiguration)
	}
	b := mat.NewVecDense(n+PaddingWidth, nil)
	for id, v := range density {
		b.SetVec(id, v)
	}
	for k := 0; k < PaddingWidth; k++ {
		b.SetVec(n+k, 1)
	}
	return b, nil
}

// Equivalent verifies that the dense and stencil forms of the operator
// agree when applied to the given potential field: the cell rows of
// the dense product A*[phi;1] must reproduce the stencil Laplacian
// minus the flux term, entrywise within tol. It returns the largest
// discrepancy found.
func Equivalent(a *mat.Dense, s *Stencil, phi []float64, tol float64) (float64, bool) {
	n := s.NumCells()
	x := mat.NewVecDense(n+PaddingWidth, nil)
	for id, v := range phi {
		x.SetVec(id, v)
	}
	for k := 0; k < PaddingWidth; k++ {
		x.SetVec(n+k, 1)
	}
	var y mat.VecDense
	y.MulVec(a, x)

	lap := make([]float64, n)
	s.Apply(phi, lap)

	var worst float64
	for id := 0; id < n; id++ {
		d := y.AtVec(id) - (lap[id] - s.fluxTerm(id))
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst, worst <= tol
}
