package boundary

import (
	"fmt"
	"math"

	"github.com/notargets/espoisson/grid"
)

// FaceFlux holds the six outward Neumann flux values of one cell,
// ordered as grid.XMin..grid.ZPlus. Faces interior to the domain are
// identically zero.
type FaceFlux [grid.NumFaces]float64

// FluxField is the Neumann boundary data of a point-charge problem:
// one FaceFlux per cell, built once by Build and read-only afterwards.
type FluxField struct {
	Grid    grid.Grid
	Nucleus [3]float64
	Charge  float64

	// Flux is indexed by linear cell id.
	Flux []FaceFlux

	// Correction is the scalar applied to every face value so the
	// surface integral matches Gauss's law exactly.
	Correction float64
}

// DegenerateGeometryError reports a nucleus that coincides with a
// boundary face center, where the point-charge field is undefined.
type DegenerateGeometryError struct {
	Cell     int
	Face     grid.Face
	Position [3]float64
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("boundary: nucleus coincides with center of face %s of cell %d at (%g, %g, %g)",
		e.Face, e.Cell, e.Position[0], e.Position[1], e.Position[2])
}

// Build computes the outward flux of the analytic point-charge field
// at every boundary face center and rescales the whole field so that
// the discrete surface integral sum(flux * H^2) equals -4*pi*charge.
//
// The analytic field has magnitude -charge/r^2 directed from the
// nucleus toward the face center; the stored value is its component
// along the outward face normal. Sampling that field only at the face
// centers of a finite lattice does not conserve flux exactly, and the
// solvers require exact conservation for the linear system to be
// compatible, hence the global rescale.
func Build(g grid.Grid, nucleus [3]float64, charge float64) (*FluxField, error) {
	f := &FluxField{
		Grid:       g,
		Nucleus:    nucleus,
		Charge:     charge,
		Flux:       make([]FaceFlux, g.NumCells()),
		Correction: 1,
	}

	for id := range f.Flux {
		ix, iy, iz := g.CellIndices(id)
		for face := grid.Face(0); face < grid.NumFaces; face++ {
			if !g.IsBoundaryFace(ix, iy, iz, face) {
				continue
			}
			px, py, pz := g.FaceCenter(ix, iy, iz, face)
			rx, ry, rz := px-nucleus[0], py-nucleus[1], pz-nucleus[2]
			r := math.Sqrt(rx*rx + ry*ry + rz*rz)
			if r == 0 {
				return nil, &DegenerateGeometryError{Cell: id, Face: face, Position: [3]float64{px, py, pz}}
			}
			// Outward normal component of the field -charge/r^2 * rhat.
			var rn float64
			switch face.Axis() {
			case 0:
				rn = rx
			case 1:
				rn = ry
			case 2:
				rn = rz
			}
			rn *= float64(face.Sign())
			f.Flux[id][face] = -charge / (r * r) * (rn / r)
		}
	}

	expected := -4 * math.Pi * charge
	actual := f.SurfaceIntegral()
	if actual == 0 {
		if expected != 0 {
			return nil, fmt.Errorf("boundary: zero surface flux for charge %g: %w", charge, grid.ErrConfiguration)
		}
		return f, nil
	}
	f.Correction = expected / actual
	for id := range f.Flux {
		for face := range f.Flux[id] {
			f.Flux[id][face] *= f.Correction
		}
	}
	return f, nil
}

// SurfaceIntegral returns the total outward flux through the domain
// boundary, sum over all faces of flux * H^2. After Build it equals
// -4*pi*Charge up to roundoff.
func (f *FluxField) SurfaceIntegral() float64 {
	area := f.Grid.FaceArea()
	var sum float64
	for id := range f.Flux {
		for face := range f.Flux[id] {
			sum += f.Flux[id][face] * area
		}
	}
	return sum
}

// At returns the outward flux on the given face of cell id.
func (f *FluxField) At(id int, face grid.Face) float64 { return f.Flux[id][face] }
