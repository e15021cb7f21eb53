package grid

import (
	"fmt"
)

// Face identifies one of the six faces of a cubical cell.
type Face uint8

const (
	XMin Face = iota
	XPlus
	YMin
	YPlus
	ZMin
	ZPlus

	NumFaces = 6
)

// Axis returns the coordinate axis (0=x, 1=y, 2=z) the face is normal to.
func (f Face) Axis() int { return int(f) / 2 }

// Sign returns the outward normal direction along Axis: -1 for lower
// faces, +1 for upper faces.
func (f Face) Sign() int {
	if f%2 == 0 {
		return -1
	}
	return 1
}

// Opposite returns the face on the other side of the cell.
func (f Face) Opposite() Face { return f ^ 1 }

func (f Face) String() string {
	names := [NumFaces]string{"-X", "+X", "-Y", "+Y", "-Z", "+Z"}
	if int(f) < len(names) {
		return names[f]
	}
	return fmt.Sprintf("Face(%d)", uint8(f))
}

// Grid is a uniform lattice of Size^3 cubical cells of edge length H,
// spanning the domain [0, Size*H]^3. It carries no field data, only
// addressing and geometry.
type Grid struct {
	Size int     // Cells along each axis
	H    float64 // Cell edge length
}

// New validates the lattice parameters. Size must be at least 1 and H
// strictly positive.
func New(size int, h float64) (Grid, error) {
	if size < 1 {
		return Grid{}, fmt.Errorf("grid: size must be >= 1, got %d: %w", size, ErrConfiguration)
	}
	if h <= 0 {
		return Grid{}, fmt.Errorf("grid: cell edge length must be > 0, got %g: %w", h, ErrConfiguration)
	}
	return Grid{Size: size, H: h}, nil
}

// NumCells returns the total cell count Size^3.
func (g Grid) NumCells() int { return g.Size * g.Size * g.Size }

// CellID linearizes a cell index triple. The mapping is
// iz*Size^2 + iy*Size + ix, a bijection for indices in [0, Size).
func (g Grid) CellID(ix, iy, iz int) int {
	return iz*g.Size*g.Size + iy*g.Size + ix
}

// CellIndices inverts CellID.
func (g Grid) CellIndices(id int) (ix, iy, iz int) {
	ix = id % g.Size
	iy = (id / g.Size) % g.Size
	iz = id / (g.Size * g.Size)
	return ix, iy, iz
}

// Neighbor returns the cell adjacent across face f. ok is false when
// that cell would fall outside the lattice, i.e. f is a domain
// boundary face of the given cell.
func (g Grid) Neighbor(ix, iy, iz int, f Face) (jx, jy, jz int, ok bool) {
	jx, jy, jz = ix, iy, iz
	switch f.Axis() {
	case 0:
		jx += f.Sign()
	case 1:
		jy += f.Sign()
	case 2:
		jz += f.Sign()
	}
	ok = jx >= 0 && jx < g.Size && jy >= 0 && jy < g.Size && jz >= 0 && jz < g.Size
	return jx, jy, jz, ok
}

// IsBoundaryFace reports whether face f of the given cell lies on the
// outer domain boundary.
func (g Grid) IsBoundaryFace(ix, iy, iz int, f Face) bool {
	_, _, _, ok := g.Neighbor(ix, iy, iz, f)
	return !ok
}

// CellCenter returns the physical coordinates of the cell center.
func (g Grid) CellCenter(ix, iy, iz int) (x, y, z float64) {
	return (float64(ix) + 0.5) * g.H, (float64(iy) + 0.5) * g.H, (float64(iz) + 0.5) * g.H
}

// FaceCenter returns the physical coordinates of the center of face f
// of the given cell.
func (g Grid) FaceCenter(ix, iy, iz int, f Face) (x, y, z float64) {
	x, y, z = g.CellCenter(ix, iy, iz)
	d := float64(f.Sign()) * g.H / 2
	switch f.Axis() {
	case 0:
		x += d
	case 1:
		y += d
	case 2:
		z += d
	}
	return x, y, z
}

// FaceArea returns the area H^2 of any cell face.
func (g Grid) FaceArea() float64 { return g.H * g.H }

// CellVolume returns the volume H^3 of any cell.
func (g Grid) CellVolume() float64 { return g.H * g.H * g.H }

// Parity returns 0 or 1 according to the checkerboard color of the
// cell, the partition used by red-black Gauss-Seidel sweeps.
func (g Grid) Parity(ix, iy, iz int) int { return (ix + iy + iz) & 1 }
