// Package config holds the process-wide blob engine configuration: lattice
// geometry, falloff kernel, iso-level, pipeline tuning and the anchor set.
// Configuration is read from TOML files.
package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/soypat/blob"
	"github.com/soypat/blob/pipeline"
	"github.com/soypat/blob/render"
	"github.com/soypat/blob/tracker"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config is the TOML representation of the engine configuration.
type Config struct {
	Lattice  Lattice  `toml:"lattice"`
	Field    Field    `toml:"field"`
	Pipeline Pipeline `toml:"pipeline"`
	// Anchors replaces the default anchor set when not empty.
	Anchors []Anchor `toml:"anchor"`
}

// Lattice configures the sampled working volume.
type Lattice struct {
	Min        [3]float64 `toml:"min"`
	Max        [3]float64 `toml:"max"`
	Resolution int        `toml:"resolution"`
	// MaxResolution bounds Resolution and any later resolution change.
	MaxResolution int `toml:"max_resolution"`
}

// Field configures the scalar field.
type Field struct {
	Iso      float64 `toml:"iso"`
	Epsilon  float64 `toml:"epsilon"`
	Exponent float64 `toml:"exponent"`
}

// Pipeline configures frame processing.
type Pipeline struct {
	// Workers is the amount of goroutines sampling and triangulating. Zero
	// uses one per CPU.
	Workers             int     `toml:"workers"`
	MaxConsecutiveDrops int     `toml:"max_consecutive_drops"`
	SmoothNormals       bool    `toml:"smooth_normals"`
	WeldTolerance       float64 `toml:"weld_tolerance"`
}

// Anchor maps a tracked role to a metaball.
type Anchor struct {
	Role          string     `toml:"role"`
	Radius        float64    `toml:"radius"`
	Scale         [3]float64 `toml:"scale"`
	Origin        [3]float64 `toml:"origin"`
	MinVisibility float64    `toml:"min_visibility"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Lattice: Lattice{
			Min:           [3]float64{-10, -8, -6},
			Max:           [3]float64{10, 8, 6},
			Resolution:    48,
			MaxResolution: blob.DefaultMaxResolution,
		},
		Field: Field{
			Iso:      blob.DefaultIso,
			Epsilon:  blob.DefaultKernel().Epsilon,
			Exponent: blob.DefaultKernel().Exponent,
		},
		Pipeline: Pipeline{
			MaxConsecutiveDrops: pipeline.DefaultMaxConsecutiveDrops,
		},
		Anchors: defaultAnchors(),
	}
}

func defaultAnchors() []Anchor {
	var anchors []Anchor
	for _, a := range tracker.DefaultAnchors() {
		anchors = append(anchors, Anchor{
			Role:          string(a.Role),
			Radius:        a.Radius,
			Scale:         array(a.Scale),
			Origin:        array(a.Origin),
			MinVisibility: a.MinVisibility,
		})
	}
	return anchors
}

// Load reads and validates the TOML configuration file at path. Values
// missing from the file keep their default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and validates a TOML configuration. Values missing from the
// input keep their default. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	c.Anchors = nil // Anchor lists replace the defaults, they are not merged.
	md, err := toml.DecodeReader(r, &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if len(c.Anchors) == 0 {
		c.Anchors = defaultAnchors()
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the whole configuration. Resolutions above the maximum are
// rejected, never clamped.
func (c Config) Validate() error {
	if _, err := c.BlobLattice(); err != nil {
		return errors.Wrap(err, "lattice")
	}
	if err := c.Kernel().Validate(); err != nil {
		return errors.Wrap(err, "field")
	}
	if !(c.Field.Iso > 0) || math.IsInf(c.Field.Iso, 0) {
		return errors.New("field: iso-level must be positive and finite")
	}
	p := c.Pipeline
	switch {
	case p.Workers < 0:
		return errors.New("pipeline: negative worker count")
	case p.MaxConsecutiveDrops < 0:
		return errors.New("pipeline: negative max consecutive drops")
	case !(p.WeldTolerance >= 0) || math.IsInf(p.WeldTolerance, 0):
		return errors.New("pipeline: weld tolerance must be non-negative and finite")
	}
	if _, err := tracker.NewSource(c.TrackerAnchors()); err != nil {
		return errors.Wrap(err, "anchors")
	}
	return nil
}

// BlobLattice returns the configured lattice.
func (c Config) BlobLattice() (blob.Lattice, error) {
	maxN := c.Lattice.MaxResolution
	if maxN <= 0 {
		return blob.Lattice{}, fmt.Errorf("max resolution %d must be positive", maxN)
	}
	bounds := r3.Box{Min: vec(c.Lattice.Min), Max: vec(c.Lattice.Max)}
	return blob.NewLattice(bounds, c.Lattice.Resolution, maxN)
}

// Kernel returns the configured falloff kernel.
func (c Config) Kernel() blob.Kernel {
	return blob.Kernel{Epsilon: c.Field.Epsilon, Exponent: c.Field.Exponent}
}

// TrackerAnchors returns the configured anchors.
func (c Config) TrackerAnchors() []tracker.Anchor {
	anchors := make([]tracker.Anchor, len(c.Anchors))
	for i, a := range c.Anchors {
		anchors[i] = tracker.Anchor{
			Role:          tracker.Role(a.Role),
			Radius:        a.Radius,
			Scale:         vec(a.Scale),
			Origin:        vec(a.Origin),
			MinVisibility: a.MinVisibility,
		}
	}
	return anchors
}

// PipelineConfig returns the configuration of a frame pipeline.
func (c Config) PipelineConfig() (pipeline.Config, error) {
	l, err := c.BlobLattice()
	if err != nil {
		return pipeline.Config{}, errors.Wrap(err, "lattice")
	}
	workers := c.Pipeline.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return pipeline.Config{
		Lattice:             l,
		MaxResolution:       c.Lattice.MaxResolution,
		Kernel:              c.Kernel(),
		Iso:                 c.Field.Iso,
		Workers:             workers,
		MaxConsecutiveDrops: c.Pipeline.MaxConsecutiveDrops,
		Assemble: render.AssembleOptions{
			Smooth:        c.Pipeline.SmoothNormals,
			WeldTolerance: c.Pipeline.WeldTolerance,
		},
	}, nil
}

func vec(a [3]float64) r3.Vec   { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
func array(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Encode writes c as TOML to w.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
