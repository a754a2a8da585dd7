package blob

import (
	"errors"
	"fmt"

	"github.com/soypat/blob/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxResolution is the largest lattice resolution accepted when no
// explicit maximum is configured.
const DefaultMaxResolution = 128

// ErrResolution is returned when a lattice resolution is not a positive
// integer within the configured maximum.
var ErrResolution = errors.New("lattice resolution out of range")

// Lattice is an axis-aligned bounding box subdivided into N³ cells.
// Vertices are addressed as (i,j,k) with i,j,k in [0, N].
// A Lattice is immutable; use WithResolution to derive a new one.
type Lattice struct {
	bounds r3.Box
	size   r3.Vec
	n      int
}

// NewLattice returns a lattice spanning bounds with n cells per axis. Resolutions
// above maxN are rejected, not clamped. If maxN <= 0 DefaultMaxResolution is used.
func NewLattice(bounds r3.Box, n, maxN int) (Lattice, error) {
	if maxN <= 0 {
		maxN = DefaultMaxResolution
	}
	if n <= 0 || n > maxN {
		return Lattice{}, fmt.Errorf("resolution %d not in [1, %d]: %w", n, maxN, ErrResolution)
	}
	if !IsFinite(bounds.Min) || !IsFinite(bounds.Max) {
		return Lattice{}, errors.New("non-finite lattice bounds")
	}
	size := d3.Box(bounds).Size()
	if d3.LTEZero(size) {
		return Lattice{}, errors.New("lattice bounds must have positive size along every axis")
	}
	return Lattice{bounds: bounds, size: size, n: n}, nil
}

// WithResolution returns a lattice over the same bounds with a new resolution.
func (l Lattice) WithResolution(n, maxN int) (Lattice, error) {
	return NewLattice(l.bounds, n, maxN)
}

// Bounds returns the lattice's bounding box.
func (l Lattice) Bounds() r3.Box { return l.bounds }

// Resolution returns N, the amount of cells along each axis.
func (l Lattice) Resolution() int { return l.n }

// Cells returns the total number of cells, N³.
func (l Lattice) Cells() int { return l.n * l.n * l.n }

// CellSize returns the dimensions of a single cell.
func (l Lattice) CellSize() r3.Vec {
	return r3.Scale(1/float64(l.n), l.size)
}

// Vertex returns the position of lattice vertex (i,j,k). Positions are computed
// as Min + Size*i/N so that vertices shared between a lattice and one of double
// its resolution are bit-identical.
func (l Lattice) Vertex(i, j, k int) r3.Vec {
	return r3.Vec{
		X: l.coord(l.bounds.Min.X, l.size.X, i),
		Y: l.coord(l.bounds.Min.Y, l.size.Y, j),
		Z: l.coord(l.bounds.Min.Z, l.size.Z, k),
	}
}

// VertexAt is Vertex for a V3i index.
func (l Lattice) VertexAt(v V3i) r3.Vec { return l.Vertex(v[0], v[1], v[2]) }

// Contains reports whether p lies within the lattice bounds.
func (l Lattice) Contains(p r3.Vec) bool {
	return d3.Box(l.bounds).Contains(p)
}

func (l Lattice) coord(min, size float64, i int) float64 {
	return min + size*float64(i)/float64(l.n)
}

// axis returns the N+1 vertex coordinates along one axis.
func (l Lattice) axis(dst []float64, min, size float64) []float64 {
	dst = dst[:0]
	for i := 0; i <= l.n; i++ {
		dst = append(dst, l.coord(min, size, i))
	}
	return dst
}
