package blob

import (
	"sync"
)

// SampledField holds the scalar value of a field at every vertex of a lattice of
// resolution N, (N+1)³ values with x varying fastest.
type SampledField struct {
	n      int
	stride int // N+1
	values []float64
}

// NewSampledField allocates a zero-valued sampled field for a lattice of resolution n.
func NewSampledField(n int) *SampledField {
	if n <= 0 {
		panic("sampled field resolution must be positive")
	}
	s := n + 1
	return &SampledField{n: n, stride: s, values: make([]float64, s*s*s)}
}

// Resolution returns N, the resolution of the lattice the field was sampled on.
func (sf *SampledField) Resolution() int { return sf.n }

// At returns the sampled value at vertex (i,j,k).
func (sf *SampledField) At(i, j, k int) float64 {
	return sf.values[sf.index(i, j, k)]
}

// Set sets the sampled value at vertex (i,j,k).
func (sf *SampledField) Set(i, j, k int, v float64) {
	sf.values[sf.index(i, j, k)] = v
}

// Values returns the underlying sample buffer. It must not be modified while a
// triangulation pass reads the field.
func (sf *SampledField) Values() []float64 { return sf.values }

func (sf *SampledField) index(i, j, k int) int {
	return i + sf.stride*(j+sf.stride*k)
}

// Sample evaluates f at every vertex of l and stores the result in dst, which is
// returned. If dst is nil or was allocated for a different resolution a new
// SampledField is allocated.
//
// The work is split in z-slabs across workers goroutines. Every vertex is
// written once to its own slot so the result is the same for any worker count.
func Sample(dst *SampledField, f Evaluator, l Lattice, workers int) *SampledField {
	if f == nil {
		panic("nil evaluator")
	}
	n := l.Resolution()
	if dst == nil || dst.n != n {
		dst = NewSampledField(n)
	}
	slabs := n + 1
	if workers <= 1 {
		sampleSlabs(dst, f, l, 0, slabs)
		return dst
	}
	workers = min(workers, slabs)
	per := (slabs + workers - 1) / workers
	var wg sync.WaitGroup
	for k0 := 0; k0 < slabs; k0 += per {
		wg.Add(1)
		go func(k0, k1 int) {
			defer wg.Done()
			sampleSlabs(dst, f, l, k0, k1)
		}(k0, min(k0+per, slabs))
	}
	wg.Wait()
	return dst
}

// sampleSlabs samples the z-slabs in [k0, k1).
func sampleSlabs(dst *SampledField, f Evaluator, l Lattice, k0, k1 int) {
	bmin, size := l.bounds.Min, l.size
	xs := l.axis(make([]float64, 0, dst.stride), bmin.X, size.X)
	ys := l.axis(make([]float64, 0, dst.stride), bmin.Y, size.Y)
	for k := k0; k < k1; k++ {
		z := l.coord(bmin.Z, size.Z, k)
		for j, y := range ys {
			idx := dst.index(0, j, k)
			for i, x := range xs {
				dst.values[idx+i] = f.Evaluate(r3Vec(x, y, z))
			}
		}
	}
}
