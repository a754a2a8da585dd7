package render

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangle soup ready to be uploaded to a renderer. Positions and
// Normals are parallel float32 arrays with a stride of 3, three vertices per
// triangle and no index buffer.
type Mesh struct {
	Positions []float32
	Normals   []float32
}

// AssembleOptions configures Assemble.
type AssembleOptions struct {
	// Smooth enables per-vertex normals. Vertices closer than WeldTolerance
	// share the area weighted sum of the normals of their faces.
	// When false every vertex carries its face normal.
	Smooth bool
	// WeldTolerance is the distance under which two vertices are considered
	// the same point. Zero welds only exactly equal positions.
	WeldTolerance float64
}

// Assemble packs triangles into a Mesh. Degenerate triangles get zero normals.
func Assemble(tris []Triangle3, opts AssembleOptions) *Mesh {
	m := &Mesh{
		Positions: make([]float32, 0, 9*len(tris)),
		Normals:   make([]float32, 0, 9*len(tris)),
	}
	faces := make([]ms3.Vec, len(tris))
	for i, t := range tris {
		for _, v := range t.V {
			m.Positions = append(m.Positions, float32(v.X), float32(v.Y), float32(v.Z))
		}
		// Cross product magnitude is twice the area, which weights smooth normals.
		faces[i] = toMS3(t.cross())
	}
	if !opts.Smooth {
		for _, f := range faces {
			n := unitOrZero(f)
			m.Normals = append(m.Normals, n.X, n.Y, n.Z, n.X, n.Y, n.Z, n.X, n.Y, n.Z)
		}
		return m
	}
	for _, n := range weldNormals(tris, faces, opts.WeldTolerance) {
		n = unitOrZero(n)
		m.Normals = append(m.Normals, n.X, n.Y, n.Z)
	}
	return m
}

// TriangleCount returns the amount of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Positions) / 9
}

// VertexCount returns the amount of vertices in the mesh.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Positions) / 3
}

// IsEmpty reports whether the mesh has no triangles. A nil mesh is empty.
func (m *Mesh) IsEmpty() bool { return m.TriangleCount() == 0 }

// Triangles unpacks the mesh positions into triangles.
func (m *Mesh) Triangles() []Triangle3 {
	nt := m.TriangleCount()
	tris := make([]Triangle3, nt)
	for i := range tris {
		p := m.Positions[9*i : 9*i+9]
		for j := range tris[i].V {
			tris[i].V[j] = r3.Vec{X: float64(p[3*j]), Y: float64(p[3*j+1]), Z: float64(p[3*j+2])}
		}
	}
	return tris
}

// Normal returns the normal of vertex i.
func (m *Mesh) Normal(i int) ms3.Vec {
	return ms3.Vec{X: m.Normals[3*i], Y: m.Normals[3*i+1], Z: m.Normals[3*i+2]}
}

func toMS3(v r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// unitOrZero returns v normalized or the zero vector if v has no direction.
func unitOrZero(v ms3.Vec) ms3.Vec {
	l := ms3.Norm(v)
	if l == 0 || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return ms3.Vec{}
	}
	return ms3.Scale(1/l, v)
}
