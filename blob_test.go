package blob

import (
	"errors"
	"math"
	"testing"

	"github.com/soypat/blob/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDensity(t *testing.T) {
	const tol = 1e-9
	k := DefaultKernel()
	if got := Density(r3.Vec{X: 3}, nil, k); got != 0 {
		t.Errorf("empty ball list: got %g. want 0", got)
	}
	ball := Metaball{Center: r3.Vec{X: 1, Y: 1}, Radius: 2}
	for _, test := range []struct {
		p    r3.Vec
		want float64
	}{
		{p: r3.Vec{X: 3, Y: 1}, want: 4 / (4 + k.Epsilon)},
		{p: r3.Vec{X: 1, Y: 1, Z: 4}, want: 4 / (16 + k.Epsilon)},
		{p: r3.Vec{X: 1, Y: 1}, want: 4 / k.Epsilon}, // Center is finite.
	} {
		got := Density(test.p, []Metaball{ball}, k)
		if math.Abs(got-test.want) > tol*test.want {
			t.Errorf("density at %v: got %g. want %g", test.p, got, test.want)
		}
	}
	// Contributions add.
	p := r3.Vec{X: 0.3, Y: -0.2, Z: 0.7}
	other := Metaball{Center: r3.Vec{Z: -1}, Radius: 0.5}
	sum := Density(p, []Metaball{ball}, k) + Density(p, []Metaball{other}, k)
	if got := Density(p, []Metaball{ball, other}, k); math.Abs(got-sum) > tol {
		t.Errorf("density not additive: got %g. want %g", got, sum)
	}
}

func TestDensityMonotonic(t *testing.T) {
	for _, k := range []Kernel{DefaultKernel(), {Epsilon: 1e-3, Exponent: 1}, {Epsilon: 1e-6, Exponent: 4}} {
		balls := []Metaball{{Radius: 1}}
		prev := math.Inf(1)
		for d := 0.0; d < 5; d += 0.05 {
			got := Density(r3.Vec{Y: d}, balls, k)
			if got >= prev {
				t.Fatalf("kernel %+v: density not decreasing at d=%g", k, d)
			}
			prev = got
		}
	}
}

func TestKernelValidate(t *testing.T) {
	if err := DefaultKernel().Validate(); err != nil {
		t.Fatal(err)
	}
	for _, k := range []Kernel{
		{},
		{Epsilon: 0, Exponent: 2},
		{Epsilon: -1, Exponent: 2},
		{Epsilon: 1e-6, Exponent: 0},
		{Epsilon: math.NaN(), Exponent: 2},
		{Epsilon: 1e-6, Exponent: math.Inf(1)},
	} {
		if k.Validate() == nil {
			t.Errorf("kernel %+v should be invalid", k)
		}
	}
}

func TestFieldBounds(t *testing.T) {
	balls := []Metaball{
		{Center: r3.Vec{X: -1}, Radius: 0.6},
		{Center: r3.Vec{X: 1.5, Y: 0.5}, Radius: 0.9},
		{Center: r3.Vec{Z: 2}, Radius: 0.3},
	}
	f := NewField(balls, DefaultKernel())
	bb := f.Bounds(DefaultIso)
	box := d3.Box(bb)
	// Sample well beyond the box: every point with density ≥ iso must be inside.
	outer := box.ScaleAboutCenter(3)
	size := outer.Size()
	const n = 40
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			for k := 0; k <= n; k++ {
				p := r3.Vec{
					X: outer.Min.X + size.X*float64(i)/n,
					Y: outer.Min.Y + size.Y*float64(j)/n,
					Z: outer.Min.Z + size.Z*float64(k)/n,
				}
				if f.Evaluate(p) >= DefaultIso && !box.Contains(p) {
					t.Fatalf("point %v inside the surface but outside bounds %v", p, bb)
				}
			}
		}
	}
	if got := NewField(nil, DefaultKernel()).Bounds(DefaultIso); got != (r3.Box{}) {
		t.Errorf("empty field bounds: got %v. want zero box", got)
	}
}

func TestNewFieldCopies(t *testing.T) {
	balls := []Metaball{{Radius: 1}}
	f := NewField(balls, DefaultKernel())
	before := f.Evaluate(r3.Vec{X: 0.5})
	balls[0].Radius = 10
	if after := f.Evaluate(r3.Vec{X: 0.5}); after != before {
		t.Errorf("field observed a change to its input slice: %g != %g", after, before)
	}
	if f.Len() != 1 {
		t.Errorf("got %d balls. want 1", f.Len())
	}
}

func TestNewLattice(t *testing.T) {
	good := r3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)}
	for _, test := range []struct {
		name    string
		bounds  r3.Box
		n, maxN int
		wantRes bool // want ErrResolution
		wantErr bool
	}{
		{name: "ok", bounds: good, n: 16, maxN: 32},
		{name: "default max", bounds: good, n: DefaultMaxResolution},
		{name: "zero", bounds: good, n: 0, wantRes: true, wantErr: true},
		{name: "negative", bounds: good, n: -3, wantRes: true, wantErr: true},
		{name: "above max", bounds: good, n: 33, maxN: 32, wantRes: true, wantErr: true},
		{name: "above default max", bounds: good, n: DefaultMaxResolution + 1, wantRes: true, wantErr: true},
		{name: "empty", bounds: r3.Box{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1}}, n: 4, wantErr: true},
		{name: "inverted", bounds: r3.Box{Min: d3.Elem(1), Max: d3.Elem(-1)}, n: 4, wantErr: true},
		{name: "nan", bounds: r3.Box{Min: r3.Vec{X: math.NaN()}, Max: d3.Elem(1)}, n: 4, wantErr: true},
		{name: "inf", bounds: r3.Box{Min: d3.Elem(-1), Max: r3.Vec{X: 1, Y: math.Inf(1), Z: 1}}, n: 4, wantErr: true},
	} {
		l, err := NewLattice(test.bounds, test.n, test.maxN)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: got error %v. want error %v", test.name, err, test.wantErr)
			continue
		}
		if errors.Is(err, ErrResolution) != test.wantRes {
			t.Errorf("%s: got %v. want ErrResolution %v", test.name, err, test.wantRes)
		}
		if err == nil && l.Resolution() != test.n {
			t.Errorf("%s: got resolution %d. want %d", test.name, l.Resolution(), test.n)
		}
	}
}

func TestLatticeVertices(t *testing.T) {
	bounds := r3.Box{Min: r3.Vec{X: -1, Y: 0, Z: 2}, Max: r3.Vec{X: 3, Y: 2, Z: 3}}
	l, err := NewLattice(bounds, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Vertex(0, 0, 0); got != bounds.Min {
		t.Errorf("first vertex: got %v. want %v", got, bounds.Min)
	}
	if got := l.Vertex(4, 4, 4); !d3.EqualWithin(got, bounds.Max, 1e-12) {
		t.Errorf("last vertex: got %v. want %v", got, bounds.Max)
	}
	if got, want := l.CellSize(), (r3.Vec{X: 1, Y: 0.5, Z: 0.25}); got != want {
		t.Errorf("cell size: got %v. want %v", got, want)
	}
	if l.Cells() != 64 {
		t.Errorf("got %d cells. want 64", l.Cells())
	}
	l2, err := l.WithResolution(8, 0)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k <= 4; k++ {
		for j := 0; j <= 4; j++ {
			for i := 0; i <= 4; i++ {
				if l.Vertex(i, j, k) != l2.Vertex(2*i, 2*j, 2*k) {
					t.Fatalf("vertex (%d,%d,%d) not shared with doubled lattice", i, j, k)
				}
			}
		}
	}
}

func TestSampleDeterministic(t *testing.T) {
	f := NewField([]Metaball{
		{Center: r3.Vec{X: 0.2}, Radius: 1},
		{Center: r3.Vec{Y: -0.7, Z: 0.4}, Radius: 0.5},
	}, DefaultKernel())
	l, err := NewLattice(r3.Box{Min: d3.Elem(-2), Max: d3.Elem(2)}, 17, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := Sample(nil, f, l, 1)
	for i := 0; i <= 17; i++ {
		for j := 0; j <= 17; j++ {
			for k := 0; k <= 17; k++ {
				if got := want.At(i, j, k); got != f.Evaluate(l.Vertex(i, j, k)) {
					t.Fatalf("sample (%d,%d,%d) does not match field", i, j, k)
				}
			}
		}
	}
	for _, workers := range []int{0, 2, 5, 18, 64} {
		got := Sample(nil, f, l, workers)
		for i, v := range got.Values() {
			if v != want.Values()[i] {
				t.Fatalf("workers=%d: value %d differs: %g != %g", workers, i, v, want.Values()[i])
			}
		}
	}
}

func TestSampleReusesBuffer(t *testing.T) {
	f := NewField([]Metaball{{Radius: 1}}, DefaultKernel())
	l, err := NewLattice(r3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)}, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	sf := NewSampledField(8)
	if got := Sample(sf, f, l, 2); got != sf {
		t.Error("matching resolution buffer not reused")
	}
	l16, _ := l.WithResolution(16, 0)
	got := Sample(sf, f, l16, 2)
	if got == sf || got.Resolution() != 16 {
		t.Error("expected a new buffer for a new resolution")
	}
	if len(got.Values()) != 17*17*17 {
		t.Errorf("got %d values. want %d", len(got.Values()), 17*17*17)
	}
}

func BenchmarkSample(b *testing.B) {
	balls := make([]Metaball, 5)
	for i := range balls {
		balls[i] = Metaball{Center: r3.Vec{X: float64(i) - 2}, Radius: 0.5}
	}
	f := NewField(balls, DefaultKernel())
	l, err := NewLattice(f.Bounds(DefaultIso), 64, 0)
	if err != nil {
		b.Fatal(err)
	}
	sf := NewSampledField(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sample(sf, f, l, 8)
	}
}
