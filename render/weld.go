package render

import (
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface  = kdVertices{}
	_ kdtree.Comparable = kdVertex{}
)

// weldNormals returns one normal per vertex of tris, three per triangle. Each is
// the sum of faces[t] over every vertex of every triangle t lying within tol of it.
func weldNormals(tris []Triangle3, faces []ms3.Vec, tol float64) []ms3.Vec {
	verts := make(kdVertices, 0, 3*len(tris))
	for i, t := range tris {
		for _, v := range t.V {
			verts = append(verts, kdVertex{Vec: v, face: i})
		}
	}
	normals := make([]ms3.Vec, len(verts))
	if len(verts) == 0 {
		return normals
	}
	// kdtree.New reorders its argument.
	tree := kdtree.New(append(kdVertices(nil), verts...), false)
	for i, v := range verts {
		keep := kdtree.NewDistKeeper(tol * tol)
		tree.NearestSet(keep, v)
		var sum ms3.Vec
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue // Sentinel.
			}
			sum = ms3.Add(sum, faces[c.Comparable.(kdVertex).face])
		}
		normals[i] = sum
	}
	return normals
}

type kdVertices []kdVertex

// kdVertex is a mesh vertex and the index of the face it belongs to.
type kdVertex struct {
	r3.Vec
	face int
}

func (k kdVertices) Index(i int) kdtree.Comparable { return k[i] }

// Len returns the length of the list.
func (k kdVertices) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdVertices) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), vertices: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdVertices) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
//
// Given c = a.Compare(b, d):
//
//	c = a_d - b_d
func (a kdVertex) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a.Vec, b.(kdVertex).Vec, int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdVertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdVertex) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.Vec, b.(kdVertex).Vec))
}

// c = a.dim - b.dim
func kdComp(a, b r3.Vec, dim int) (c float64) {
	switch dim {
	case 0:
		c = a.X - b.X
	case 1:
		c = a.Y - b.Y
	case 2:
		c = a.Z - b.Z
	}
	return c
}

type kdPlane struct {
	dim      int
	vertices kdVertices
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.vertices[i].Vec, p.vertices[j].Vec, p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}
func (p kdPlane) Len() int {
	return len(p.vertices)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.vertices = p.vertices[start:end]
	return p
}
