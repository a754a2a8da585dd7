package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/soypat/blob"
	"github.com/soypat/blob/tracker"
	"gonum.org/v1/gonum/spatial/r3"
)

var pose = tracker.Frame{
	tracker.Nose:      {X: 0.5, Y: 0.3, Z: 0, Visibility: 0.9},
	tracker.Torso:     {X: 0.5, Y: 0.55, Z: 0, Visibility: 0.9},
	tracker.LeftElbow: {X: 0.3, Y: 0.5, Z: 0, Visibility: 0.9},
}

func newTestPipeline(t *testing.T, maxDrops int) (*Pipeline, *tracker.Source) {
	src, err := tracker.NewSource(tracker.DefaultAnchors())
	if err != nil {
		t.Fatal(err)
	}
	l, err := blob.NewLattice(r3.Box{Min: r3.Vec{X: -10, Y: -8, Z: -6}, Max: r3.Vec{X: 10, Y: 8, Z: 6}}, 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(src, Config{
		Lattice:             l,
		MaxResolution:       32,
		Kernel:              blob.DefaultKernel(),
		Iso:                 blob.DefaultIso,
		Workers:             4,
		MaxConsecutiveDrops: maxDrops,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p, src
}

func TestNewValidation(t *testing.T) {
	src, err := tracker.NewSource(tracker.DefaultAnchors())
	if err != nil {
		t.Fatal(err)
	}
	l, _ := blob.NewLattice(r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, 16, 0)
	good := Config{Lattice: l, Kernel: blob.DefaultKernel(), Iso: 1}
	if _, err := New(src, good); err != nil {
		t.Fatal(err)
	}
	for name, test := range map[string]struct {
		src *tracker.Source
		cfg Config
	}{
		"nil source":    {cfg: good},
		"zero lattice":  {src: src, cfg: Config{Kernel: blob.DefaultKernel(), Iso: 1}},
		"above max":     {src: src, cfg: Config{Lattice: l, MaxResolution: 8, Kernel: blob.DefaultKernel(), Iso: 1}},
		"bad kernel":    {src: src, cfg: Config{Lattice: l, Iso: 1}},
		"zero iso":      {src: src, cfg: Config{Lattice: l, Kernel: blob.DefaultKernel()}},
		"negative drop": {src: src, cfg: Config{Lattice: l, Kernel: blob.DefaultKernel(), Iso: 1, MaxConsecutiveDrops: -1}},
	} {
		if _, err := New(test.src, test.cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFramePublishes(t *testing.T) {
	p, src := newTestPipeline(t, DefaultMaxConsecutiveDrops)
	if !p.Current().IsEmpty() {
		t.Fatal("mesh published before first frame")
	}
	// No tracking data yet: the field is empty everywhere.
	mesh, err := p.Frame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !mesh.IsEmpty() {
		t.Errorf("got %d triangles for an empty source. want 0", mesh.TriangleCount())
	}
	if n := src.Update(pose); n != 3 {
		t.Fatalf("got %d balls. want 3", n)
	}
	mesh, err = p.Frame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if mesh.IsEmpty() {
		t.Fatal("expected triangles for a tracked pose")
	}
	if p.Current() != mesh {
		t.Error("frame mesh not published")
	}
	stats := p.Stats()
	if stats.Published != 2 || stats.Dropped != 0 || stats.Triangles != mesh.TriangleCount() {
		t.Errorf("unexpected stats %+v", stats)
	}
	l := p.Lattice()
	for i := 0; i < len(mesh.Positions); i += 3 {
		v := r3.Vec{X: float64(mesh.Positions[i]), Y: float64(mesh.Positions[i+1]), Z: float64(mesh.Positions[i+2])}
		if !d3Contains(l.Bounds(), v, 1e-4) {
			t.Fatalf("vertex %v outside lattice", v)
		}
	}
}

func d3Contains(bb r3.Box, v r3.Vec, tol float64) bool {
	return bb.Min.X-tol <= v.X && v.X <= bb.Max.X+tol &&
		bb.Min.Y-tol <= v.Y && v.Y <= bb.Max.Y+tol &&
		bb.Min.Z-tol <= v.Z && v.Z <= bb.Max.Z+tol
}

func TestStaleFrameDropBound(t *testing.T) {
	const maxDrops = 2
	p, src := newTestPipeline(t, maxDrops)
	src.Update(pose)
	p.testHookSampled = func() { src.Update(pose) }
	for i := 0; i < maxDrops; i++ {
		_, err := p.Frame(context.Background())
		if !errors.Is(err, ErrStaleFrame) {
			t.Fatalf("frame %d: got %v. want ErrStaleFrame", i, err)
		}
	}
	if !p.Current().IsEmpty() {
		t.Fatal("dropped frame was published")
	}
	mesh, err := p.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame after %d drops must complete: %v", maxDrops, err)
	}
	if mesh.IsEmpty() || p.Current() != mesh {
		t.Error("starved frame not published")
	}
	// Drop count resets after a publish.
	if _, err = p.Frame(context.Background()); !errors.Is(err, ErrStaleFrame) {
		t.Errorf("got %v. want ErrStaleFrame", err)
	}
	if got := p.Stats(); got.Dropped != maxDrops+1 || got.Published != 1 {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestNoDropping(t *testing.T) {
	p, src := newTestPipeline(t, 0)
	src.Update(pose)
	p.testHookSampled = func() { src.Update(pose) }
	if _, err := p.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFrameCanceled(t *testing.T) {
	p, src := newTestPipeline(t, DefaultMaxConsecutiveDrops)
	src.Update(pose)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Frame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v. want context.Canceled", err)
	}
}

func TestRun(t *testing.T) {
	p, src := newTestPipeline(t, DefaultMaxConsecutiveDrops)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p.log = logger
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	src.Update(pose)
	deadline := time.Now().Add(10 * time.Second)
	for p.Stats().Published == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frame published")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("got %v. want context.Canceled", err)
	}
	if p.Current().IsEmpty() {
		t.Error("run published an empty mesh for a tracked pose")
	}
	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "published mesh" {
			found = true
			if e.Data["balls"] != 3 {
				t.Errorf("got balls field %v. want 3", e.Data["balls"])
			}
		}
	}
	if !found {
		t.Error("no published mesh log entry")
	}
}

func TestSetResolution(t *testing.T) {
	p, src := newTestPipeline(t, DefaultMaxConsecutiveDrops)
	src.Update(pose)
	if err := p.SetResolution(33); !errors.Is(err, blob.ErrResolution) {
		t.Errorf("got %v. want ErrResolution", err)
	}
	if err := p.SetResolution(0); !errors.Is(err, blob.ErrResolution) {
		t.Errorf("got %v. want ErrResolution", err)
	}
	if p.Lattice().Resolution() != 24 {
		t.Fatal("rejected resolution changed the lattice")
	}
	coarse, err := p.Frame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetResolution(32); err != nil {
		t.Fatal(err)
	}
	fine, err := p.Frame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fine.TriangleCount() <= coarse.TriangleCount() {
		t.Errorf("finer lattice gave %d triangles, coarse gave %d", fine.TriangleCount(), coarse.TriangleCount())
	}
}
