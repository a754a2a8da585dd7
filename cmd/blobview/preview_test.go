package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/soypat/blob/config"
	"github.com/soypat/blob/pipeline"
	"github.com/soypat/blob/render"
	"github.com/soypat/blob/tracker"
	"gonum.org/v1/plot/cmpimg"
)

func TestDemoFrameRoundTrip(t *testing.T) {
	anchors := tracker.DefaultAnchors()
	const phase = 0.7
	pose := demoPose(phase)
	frame := demoFrame(anchors, phase)
	if len(frame) != len(anchors) {
		t.Fatalf("want %d landmarks, got %d", len(anchors), len(frame))
	}
	for _, a := range anchors {
		got := a.World(frame[a.Role])
		want := pose[a.Role]
		if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 || math.Abs(got.Z-want.Z) > 1e-9 {
			t.Errorf("%s: want %v, got %v", a.Role, want, got)
		}
	}
}

func TestPreviewDeterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping preview rendering in short mode")
	}
	dir := t.TempDir()
	var pngs [2][]byte
	for i := range pngs {
		stlPath := filepath.Join(dir, "blob.stl")
		pngPath := filepath.Join(dir, "blob.png")
		renderDemo(t, stlPath, 1.1)
		err := stlToPNG(stlPath, pngPath, defaultView)
		if err != nil {
			t.Fatal(err)
		}
		pngs[i], err = os.ReadFile(pngPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	equal, err := cmpimg.EqualApprox("png", pngs[0], pngs[1], 0)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("rendering the same frame twice produced different previews")
	}
}

func TestAnimate(t *testing.T) {
	c := config.Default()
	c.Lattice.Resolution = 16
	pc, err := c.PipelineConfig()
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := test.NewNullLogger()
	pc.Log = logger
	src, err := tracker.NewSource(c.TrackerAnchors())
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(src, pc)
	if err != nil {
		t.Fatal(err)
	}
	stlPath := filepath.Join(t.TempDir(), "last.stl")
	err = animate(p, src, 5, 200, stlPath)
	if err != nil {
		t.Fatal(err)
	}
	stats := p.Stats()
	if stats.Published == 0 {
		t.Error("animation published no meshes")
	}
	if p.Current().IsEmpty() {
		t.Error("expected last mesh to be non-empty")
	}
	fi, err := os.Stat(stlPath)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(84 + 50*p.Current().TriangleCount()); fi.Size() != want {
		t.Errorf("want STL size %d, got %d", want, fi.Size())
	}
}

// renderDemo writes the demo pose at phase t to an STL file.
func renderDemo(t *testing.T, stlPath string, phase float64) {
	t.Helper()
	c := config.Default()
	c.Lattice.Resolution = 32
	pc, err := c.PipelineConfig()
	if err != nil {
		t.Fatal(err)
	}
	src, err := tracker.NewSource(c.TrackerAnchors())
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(src, pc)
	if err != nil {
		t.Fatal(err)
	}
	src.Update(demoFrame(src.Anchors(), phase))
	mesh, err := p.Frame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if mesh.IsEmpty() {
		t.Fatal("demo pose produced empty mesh")
	}
	fp, err := os.Create(stlPath)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	err = render.WriteSTL(fp, mesh.Triangles())
	if err != nil {
		t.Fatal(err)
	}
}
