package tracker

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/blob"
	"github.com/soypat/blob/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Landmark is a tracked point in normalized tracker coordinates. X and Y are
// in [0,1] image space, Z is depth relative to the subject. Visibility is the
// tracker's confidence in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

func (lm Landmark) vec() r3.Vec { return r3.Vec{X: lm.X, Y: lm.Y, Z: lm.Z} }

// Role names a body anchor point.
type Role string

const (
	Nose       Role = "nose"
	LeftHand   Role = "left_hand"
	RightHand  Role = "right_hand"
	LeftElbow  Role = "left_elbow"
	RightElbow Role = "right_elbow"
	LeftKnee   Role = "left_knee"
	RightKnee  Role = "right_knee"
	Torso      Role = "torso"
)

// Roles returns all known roles.
func Roles() []Role {
	return []Role{Nose, LeftHand, RightHand, LeftElbow, RightElbow, LeftKnee, RightKnee, Torso}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Anchor maps a tracked Role to a metaball. The landmark is mapped to world
// space as Scale ⊙ (landmark - Origin), each axis scaled independently since
// body parts span different apparent motion ranges.
type Anchor struct {
	Role   Role
	Radius float64
	Scale  r3.Vec
	Origin r3.Vec
	// MinVisibility is the confidence under which the anchor is dropped.
	MinVisibility float64
}

// Validate returns an error if the anchor cannot produce a finite metaball.
func (a Anchor) Validate() error {
	switch {
	case !a.Role.Valid():
		return fmt.Errorf("unknown anchor role %q", a.Role)
	case !(a.Radius > 0) || math.IsInf(a.Radius, 0):
		return fmt.Errorf("anchor %s: radius must be positive and finite", a.Role)
	case !blob.IsFinite(a.Scale) || !blob.IsFinite(a.Origin):
		return fmt.Errorf("anchor %s: non-finite scale or origin", a.Role)
	case a.Scale.X == 0 || a.Scale.Y == 0 || a.Scale.Z == 0:
		return fmt.Errorf("anchor %s: zero scale collapses an axis", a.Role)
	case math.IsNaN(a.MinVisibility):
		return fmt.Errorf("anchor %s: NaN minimum visibility", a.Role)
	}
	return nil
}

func (a Anchor) transform() d3.Transform {
	return d3.ComposeTransform(r3.Scale(-1, d3.MulElem(a.Scale, a.Origin)), a.Scale, r3.Rotation{})
}

// World maps a landmark to world space.
func (a Anchor) World(lm Landmark) r3.Vec {
	return a.transform().Transform(lm.vec())
}

// Landmark returns the landmark that maps to world position p. It is the
// inverse of World and is used to synthesize tracker frames.
func (a Anchor) Landmark(p r3.Vec, visibility float64) Landmark {
	v := a.transform().Inv().Transform(p)
	return Landmark{X: v.X, Y: v.Y, Z: v.Z, Visibility: visibility}
}

var errNoAnchors = errors.New("no anchors configured")

// DefaultAnchors returns the anchor set of a face, left hand, both elbows and
// torso body blob. Knees and the right hand are recognized roles without a
// default anchor.
func DefaultAnchors() []Anchor {
	origin := r3.Vec{X: 0.5, Y: 0.5}
	return []Anchor{
		{Role: Nose, Radius: 1.1, Scale: r3.Vec{X: 10, Y: -10, Z: 10}, Origin: origin, MinVisibility: 0.5},
		{Role: LeftHand, Radius: 0.1, Scale: r3.Vec{X: 10, Y: -5, Z: 10}, Origin: origin, MinVisibility: 0.5},
		{Role: LeftElbow, Radius: 0.1, Scale: r3.Vec{X: 20, Y: -10, Z: 10}, Origin: origin, MinVisibility: 0.5},
		{Role: RightElbow, Radius: 0.1, Scale: r3.Vec{X: 25, Y: -10, Z: 10}, Origin: origin, MinVisibility: 0.5},
		{Role: Torso, Radius: 2.1, Scale: r3.Vec{X: 10, Y: -10, Z: 10}, Origin: origin, MinVisibility: 0.5},
	}
}
