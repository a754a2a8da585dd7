// Package blob implements the implicit metaball scalar field and its sampling
// over a fixed lattice. The field is polygonized by package render.
package blob

import (
	"errors"
	"math"

	"github.com/soypat/blob/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultIso is the default iso-level: points with density ≥ DefaultIso are inside.
const DefaultIso = 1.0

// Metaball is a weighted point source. Radius encodes influence strength,
// not a hard geometric boundary.
type Metaball struct {
	Center r3.Vec
	Radius float64
}

// Evaluator is a scalar field that can be sampled over a lattice.
type Evaluator interface {
	// Evaluate returns the scalar value of the field at p. Evaluate must be
	// safe for concurrent use and return the same value for the same p.
	Evaluate(p r3.Vec) float64
}

// Kernel parametrizes the falloff of a single metaball's contribution:
//  (r² / (d² + Epsilon)) ^ (Exponent/2)
// The zero value is not valid, use DefaultKernel.
type Kernel struct {
	// Epsilon prevents the singularity at the metaball center.
	Epsilon float64
	// Exponent controls falloff sharpness. An exponent of 2 gives the classic r²/d².
	Exponent float64
}

// DefaultKernel returns the r²/(d²+ε) kernel.
func DefaultKernel() Kernel {
	return Kernel{Epsilon: 1e-6, Exponent: 2}
}

// Validate returns an error if the kernel parameters yield a non-decreasing
// or singular falloff.
func (k Kernel) Validate() error {
	switch {
	case !isFinite(k.Epsilon) || k.Epsilon <= 0:
		return errors.New("kernel epsilon must be positive and finite")
	case !isFinite(k.Exponent) || k.Exponent <= 0:
		return errors.New("kernel exponent must be positive and finite")
	}
	return nil
}

// contribution returns the field value of a single metaball at squared distance d2.
func (k Kernel) contribution(r, d2 float64) float64 {
	v := r * r / (d2 + k.Epsilon)
	if k.Exponent == 2 {
		return v
	}
	return math.Pow(v, k.Exponent/2)
}

// Density returns the summed influence of balls at p. It is pure and
// returns 0 for an empty ball list.
func Density(p r3.Vec, balls []Metaball, k Kernel) (sum float64) {
	for i := range balls {
		sum += k.contribution(balls[i].Radius, r3.Norm2(r3.Sub(p, balls[i].Center)))
	}
	return sum
}

// Field is an immutable snapshot of a metaball list and the kernel used to evaluate it.
type Field struct {
	balls []Metaball
	k     Kernel
}

var _ Evaluator = Field{}

// NewField returns the field generated by balls. The ball slice is copied so
// later changes to it are not observed by the field.
func NewField(balls []Metaball, k Kernel) Field {
	f := Field{k: k}
	if len(balls) > 0 {
		f.balls = append(make([]Metaball, 0, len(balls)), balls...)
	}
	return f
}

// Evaluate returns the field density at p.
func (f Field) Evaluate(p r3.Vec) float64 {
	return Density(p, f.balls, f.k)
}

// Len returns the amount of metaballs in the field.
func (f Field) Len() int { return len(f.balls) }

// Bounds returns a box that contains every point of density ≥ iso. A point can
// only reach iso if at least one of the M balls contributes iso/M, so the box
// is the union of the per-ball boxes at that level. Returns the zero box for
// an empty field.
func (f Field) Bounds(iso float64) r3.Box {
	if len(f.balls) == 0 || iso <= 0 {
		return r3.Box{}
	}
	level := iso / float64(len(f.balls))
	var bb r3.Box
	for i, b := range f.balls {
		// Solve contribution(r, d²) = level for d.
		d2 := b.Radius*b.Radius*math.Pow(level, -2/f.k.Exponent) - f.k.Epsilon
		d := math.Sqrt(math.Max(d2, 0))
		half := d3.Elem(d)
		ballbb := r3.Box{Min: r3.Sub(b.Center, half), Max: r3.Add(b.Center, half)}
		if i == 0 {
			bb = ballbb
			continue
		}
		bb = r3.Box(d3.Box(bb).Extend(d3.Box(ballbb)))
	}
	return bb
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFinite reports whether all components of v are neither NaN nor infinite.
func IsFinite(v r3.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
