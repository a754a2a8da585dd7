package render

import (
	"github.com/soypat/blob/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams the triangles of a surface. ReadTriangles returns io.EOF once
// every triangle has been read.
type Renderer interface {
	ReadTriangles(dst []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle. Vertices are wound counter-clockwise when seen
// from outside the surface.
type Triangle3 struct {
	V [3]r3.Vec
}

// Normal returns the unit normal of the triangle following the right hand rule.
// The result is not finite for degenerate triangles.
func (t Triangle3) Normal() r3.Vec {
	return r3.Unit(t.cross())
}

// Area returns the area of the triangle.
func (t Triangle3) Area() float64 {
	return 0.5 * r3.Norm(t.cross())
}

func (t Triangle3) cross() r3.Vec {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Cross(e1, e2)
}

// Degenerate returns true if two of the triangle's vertices are within tol
// of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return d3.EqualWithin(t.V[0], t.V[1], tol) ||
		d3.EqualWithin(t.V[1], t.V[2], tol) ||
		d3.EqualWithin(t.V[2], t.V[0], tol)
}

// Bounds returns the smallest box containing the triangle.
func (t Triangle3) Bounds() r3.Box {
	return r3.Box{
		Min: d3.MinElem(t.V[2], d3.MinElem(t.V[0], t.V[1])),
		Max: d3.MaxElem(t.V[2], d3.MaxElem(t.V[0], t.V[1])),
	}
}
