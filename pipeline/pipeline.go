// Package pipeline runs the per-frame blob extraction: snapshot the metaball
// source, sample the field over the lattice, triangulate and assemble a mesh,
// then publish it for a renderer to pick up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/soypat/blob"
	"github.com/soypat/blob/render"
	"github.com/soypat/blob/tracker"
)

// DefaultMaxConsecutiveDrops is the default amount of frames that may be
// dropped in a row for newer input before a frame is completed regardless.
const DefaultMaxConsecutiveDrops = 3

// ErrStaleFrame is returned by Frame when newer tracking input arrived while
// the frame was being computed and the frame was dropped.
var ErrStaleFrame = errors.New("stale frame dropped")

// Config configures a Pipeline.
type Config struct {
	Lattice blob.Lattice
	// MaxResolution bounds SetResolution. Zero uses blob.DefaultMaxResolution.
	MaxResolution int
	Kernel        blob.Kernel
	Iso           float64
	// Workers is the amount of goroutines used for sampling and triangulation.
	Workers int
	// MaxConsecutiveDrops bounds starvation under a fast tracker. Zero never
	// drops stale frames.
	MaxConsecutiveDrops int
	Assemble            render.AssembleOptions
	// Log receives per-frame events. If nil logging is discarded.
	Log logrus.FieldLogger
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	// LastFrame is the duration of the last published frame.
	LastFrame time.Duration
	// Triangles of the last published mesh.
	Triangles int
}

// Pipeline computes and publishes blob meshes. Frame calls are serialized;
// Current and Stats may be called concurrently from any goroutine.
type Pipeline struct {
	src *tracker.Source
	cfg Config
	log logrus.FieldLogger

	mu      sync.Mutex // guards fields below.
	lattice blob.Lattice
	sf      *blob.SampledField
	drops   int // consecutive drops.
	// testHookSampled runs after sampling, before the staleness check.
	testHookSampled func()

	current   atomic.Pointer[render.Mesh]
	published atomic.Uint64
	dropped   atomic.Uint64
	lastFrame atomic.Int64
	triangles atomic.Int64
}

// New returns a pipeline reading metaballs from src.
func New(src *tracker.Source, cfg Config) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("nil metaball source")
	}
	if cfg.MaxResolution <= 0 {
		cfg.MaxResolution = blob.DefaultMaxResolution
	}
	n := cfg.Lattice.Resolution()
	if n <= 0 || n > cfg.MaxResolution {
		return nil, fmt.Errorf("resolution %d not in [1, %d]: %w", n, cfg.MaxResolution, blob.ErrResolution)
	}
	if err := cfg.Kernel.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.Iso > 0) || math.IsInf(cfg.Iso, 0) {
		return nil, errors.New("iso-level must be positive and finite")
	}
	if cfg.MaxConsecutiveDrops < 0 {
		return nil, errors.New("negative max consecutive drops")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	log := cfg.Log
	if log == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		log = discard
	}
	p := &Pipeline{
		src:     src,
		cfg:     cfg,
		log:     log.WithField("pipeline", uuid.New().String()),
		lattice: cfg.Lattice,
		sf:      blob.NewSampledField(n),
	}
	p.current.Store(&render.Mesh{})
	return p, nil
}

// Frame computes the mesh of the current metaball snapshot and publishes it.
// If the source is updated while the frame is in flight the frame is dropped
// and ErrStaleFrame returned, unless MaxConsecutiveDrops frames were already
// dropped in a row, in which case the frame is completed.
func (p *Pipeline) Frame(ctx context.Context) (*render.Mesh, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	gen, balls := p.src.Snapshot()
	if err := p.check(ctx, gen); err != nil {
		return nil, err
	}
	var tris []render.Triangle3
	if len(balls) > 0 {
		field := blob.NewField(balls, p.cfg.Kernel)
		p.sf = blob.Sample(p.sf, field, p.lattice, p.cfg.Workers)
		if p.testHookSampled != nil {
			p.testHookSampled()
		}
		if err := p.check(ctx, gen); err != nil {
			return nil, err
		}
		tris = render.Triangulate(p.sf, p.lattice, p.cfg.Iso, p.cfg.Workers)
		if err := p.check(ctx, gen); err != nil {
			return nil, err
		}
	}
	mesh := render.Assemble(tris, p.cfg.Assemble)
	if err := p.check(ctx, gen); err != nil {
		return nil, err
	}
	p.current.Store(mesh)
	p.drops = 0
	elapsed := time.Since(start)
	p.published.Add(1)
	p.lastFrame.Store(int64(elapsed))
	p.triangles.Store(int64(mesh.TriangleCount()))
	p.log.WithFields(logrus.Fields{
		"frame":     gen,
		"balls":     len(balls),
		"triangles": mesh.TriangleCount(),
		"elapsed":   elapsed,
	}).Debug("published mesh")
	return mesh, nil
}

// check returns an error if the frame of generation gen must be abandoned.
// Must be called with p.mu held.
func (p *Pipeline) check(ctx context.Context, gen uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.src.Generation() == gen || p.drops >= p.cfg.MaxConsecutiveDrops {
		return nil
	}
	p.drops++
	p.dropped.Add(1)
	return ErrStaleFrame
}

// Run computes a frame after every source update until ctx is done, in
// which case it returns ctx.Err(). Updates arriving faster than frames
// complete are coalesced.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.WithField("resolution", p.Lattice().Resolution()).Info("pipeline started")
	defer p.log.Info("pipeline stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.src.Updated():
		}
		_, err := p.Frame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrStaleFrame):
			p.log.WithField("dropped", p.dropped.Load()).Debug("dropped stale frame")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
}

// Current returns the last published mesh. The mesh is never modified after
// publication so it remains valid while a renderer holds it, even after a
// newer mesh is published. Before the first frame an empty mesh is returned.
func (p *Pipeline) Current() *render.Mesh { return p.current.Load() }

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		LastFrame: time.Duration(p.lastFrame.Load()),
		Triangles: int(p.triangles.Load()),
	}
}

// Lattice returns the lattice frames are sampled on.
func (p *Pipeline) Lattice() blob.Lattice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lattice
}

// SetResolution changes the lattice resolution, re-allocating the sample
// buffer. Resolutions outside [1, MaxResolution] are rejected.
func (p *Pipeline) SetResolution(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, err := p.lattice.WithResolution(n, p.cfg.MaxResolution)
	if err != nil {
		return err
	}
	p.lattice = l
	p.sf = blob.NewSampledField(n)
	p.log.WithField("resolution", n).Info("lattice resolution changed")
	return nil
}
