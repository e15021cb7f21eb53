package solver

import (
	"github.com/notargets/espoisson/operator"
)

// JacobiSweep performs one weighted Jacobi sweep, writing the updated
// field into next. Every cell reads only the previous iterate phi —
// the simultaneity of the update is a correctness requirement, not an
// optimization, which is why the sweep is out of place.
func JacobiSweep(st *operator.Stencil, phi, next, rhs []float64, weight float64) {
	for id := range phi {
		r := rhs[id] - st.ApplyAt(phi, id)
		next[id] = phi[id] + weight*r/st.Diagonal(id)
	}
}

// GaussSeidelSweep performs one in-place Gauss-Seidel sweep in linear
// cell order. Later cells see neighbor values already updated within
// the same sweep; that read-after-write ordering is what distinguishes
// the method from Jacobi.
func GaussSeidelSweep(st *operator.Stencil, phi, rhs []float64) {
	for id := range phi {
		r := rhs[id] - st.ApplyAt(phi, id)
		phi[id] += r / st.Diagonal(id)
	}
}

// RedBlackSweep performs one Gauss-Seidel sweep in two checkerboard
// phases. Cells within one color have no stencil coupling to each
// other, so each phase could run its updates concurrently; the second
// phase must still observe every write of the first.
func RedBlackSweep(st *operator.Stencil, phi, rhs []float64) {
	g := st.G
	for color := 0; color <= 1; color++ {
		for id := range phi {
			ix, iy, iz := g.CellIndices(id)
			if g.Parity(ix, iy, iz) != color {
				continue
			}
			r := rhs[id] - st.ApplyAt(phi, id)
			phi[id] += r / st.Diagonal(id)
		}
	}
}
