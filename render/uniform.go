package render

import (
	"io"
	"sync"

	"github.com/soypat/blob"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangulate runs marching cubes over every cell of the lattice l using the
// values in sf, which must have been sampled on l. Cells are split in z-slabs
// across workers goroutines and the per-slab results are concatenated in slab
// order, so the output is identical for any amount of workers.
func Triangulate(sf *blob.SampledField, l blob.Lattice, iso float64, workers int) []Triangle3 {
	n := l.Resolution()
	if sf == nil || sf.Resolution() != n {
		panic("sampled field does not match lattice resolution")
	}
	if workers <= 1 {
		return triangulateSlabs(nil, sf, l, iso, 0, n)
	}
	workers = min(workers, n)
	per := (n + workers - 1) / workers
	slabs := make([][]Triangle3, (n+per-1)/per)
	var wg sync.WaitGroup
	for i := range slabs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k0 := i * per
			slabs[i] = triangulateSlabs(nil, sf, l, iso, k0, min(k0+per, n))
		}(i)
	}
	wg.Wait()
	total := 0
	for _, s := range slabs {
		total += len(s)
	}
	result := make([]Triangle3, 0, total)
	for _, s := range slabs {
		result = append(result, s...)
	}
	return result
}

// triangulateSlabs appends the triangles of cell slabs [k0, k1) to dst.
func triangulateSlabs(dst []Triangle3, sf *blob.SampledField, l blob.Lattice, iso float64, k0, k1 int) []Triangle3 {
	n := l.Resolution()
	var buf [marchingCubesMaxTriangles]Triangle3
	for k := k0; k < k1; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				nt := triangulateCell(buf[:], sf, l, iso, blob.V3i{i, j, k})
				dst = append(dst, buf[:nt]...)
			}
		}
	}
	return dst
}

// triangulateCell writes the triangles of the cell with lowest vertex c to dst.
func triangulateCell(dst []Triangle3, sf *blob.SampledField, l blob.Lattice, iso float64, c blob.V3i) int {
	var (
		corners [8]r3.Vec
		values  [8]float64
		inside  int
	)
	for i, off := range mcCornerOffsets {
		v := c.Add(off)
		values[i] = sf.At(v[0], v[1], v[2])
		if values[i] >= iso {
			inside++
		}
	}
	if inside == 0 || inside == 8 {
		return 0
	}
	for i, off := range mcCornerOffsets {
		corners[i] = l.VertexAt(c.Add(off))
	}
	return mcToTriangles(dst, corners, values, iso)
}

// UniformRenderer streams the marching cubes triangulation of a sampled field
// cell by cell. It implements Renderer.
type UniformRenderer struct {
	sf        *blob.SampledField
	l         blob.Lattice
	iso       float64
	next      int // next cell to process, x varies fastest.
	unwritten triangle3Buffer
}

var _ Renderer = (*UniformRenderer)(nil)

// NewUniformRenderer returns a Renderer over the cells of l. sf must have been
// sampled on l and must not be modified while rendering.
func NewUniformRenderer(sf *blob.SampledField, l blob.Lattice, iso float64) *UniformRenderer {
	if sf == nil || sf.Resolution() != l.Resolution() {
		panic("sampled field does not match lattice resolution")
	}
	return &UniformRenderer{
		sf:        sf,
		l:         l,
		iso:       iso,
		unwritten: triangle3Buffer{buf: make([]Triangle3, 0, marchingCubesMaxTriangles)},
	}
}

// ReadTriangles writes triangles rendered from the sampled field into dst.
// It returns io.EOF once every cell has been processed and read.
func (u *UniformRenderer) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	if u.unwritten.Len() > 0 {
		n += u.unwritten.Read(dst)
		if n == len(dst) {
			return n, nil
		}
	}
	res := u.l.Resolution()
	cells := u.l.Cells()
	var tmp [marchingCubesMaxTriangles]Triangle3
	for n < len(dst) && u.next < cells {
		c := blob.V3i{u.next % res, (u.next / res) % res, u.next / (res * res)}
		u.next++
		if n+marchingCubesMaxTriangles > len(dst) {
			// Not enough room for a full cell, keep the rest for the next call.
			nt := triangulateCell(tmp[:], u.sf, u.l, u.iso, c)
			written := copy(dst[n:], tmp[:nt])
			u.unwritten.Write(tmp[written:nt])
			n += written
			continue
		}
		n += triangulateCell(dst[n:], u.sf, u.l, u.iso, c)
	}
	if n == 0 && u.next >= cells && u.unwritten.Len() == 0 {
		return 0, io.EOF
	}
	return n, nil
}
