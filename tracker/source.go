// Package tracker turns named body landmarks into metaballs. A Source keeps
// the latest metaball list as an immutable snapshot that frame pipelines read
// without locking.
package tracker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/soypat/blob"
)

// Frame holds the anchor landmarks of one tracking result. Missing roles are
// absent from the map.
type Frame map[Role]Landmark

type snapshot struct {
	gen   uint64
	balls []blob.Metaball
}

// Source converts tracking frames into metaball lists. Update may be called
// from the tracking goroutine while any amount of readers call Snapshot.
type Source struct {
	anchors []Anchor
	mu      sync.Mutex // serializes writers.
	snap    atomic.Pointer[snapshot]
	updated chan struct{}
}

// NewSource returns a Source for the given anchors. Each role may be
// anchored at most once.
func NewSource(anchors []Anchor) (*Source, error) {
	if len(anchors) == 0 {
		return nil, errNoAnchors
	}
	seen := make(map[Role]bool, len(anchors))
	for _, a := range anchors {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.Role] {
			return nil, fmt.Errorf("duplicate anchor role %q", a.Role)
		}
		seen[a.Role] = true
	}
	s := &Source{
		anchors: append([]Anchor(nil), anchors...),
		updated: make(chan struct{}, 1),
	}
	s.snap.Store(&snapshot{})
	return s, nil
}

// Update replaces the metaball list with the metaballs of frame's anchors.
// Anchors missing from frame, with non-finite coordinates or below their
// visibility threshold contribute no metaball. The previous list is never
// modified. Update returns the number of metaballs emitted.
func (s *Source) Update(frame Frame) int {
	balls := make([]blob.Metaball, 0, len(s.anchors))
	for _, a := range s.anchors {
		lm, ok := frame[a.Role]
		if !ok || !finite(lm) || lm.Visibility < a.MinVisibility {
			continue
		}
		center := a.World(lm)
		if !blob.IsFinite(center) {
			continue
		}
		balls = append(balls, blob.Metaball{Center: center, Radius: a.Radius})
	}
	s.mu.Lock()
	s.snap.Store(&snapshot{gen: s.snap.Load().gen + 1, balls: balls})
	s.mu.Unlock()
	// Last write wins: a pending notification already covers this update.
	select {
	case s.updated <- struct{}{}:
	default:
	}
	return len(balls)
}

// Snapshot returns the current metaball list and its generation. The list
// must not be modified. Generation 0 means no update has happened yet.
func (s *Source) Snapshot() (gen uint64, balls []blob.Metaball) {
	snap := s.snap.Load()
	return snap.gen, snap.balls
}

// Generation returns the generation of the current metaball list.
func (s *Source) Generation() uint64 { return s.snap.Load().gen }

// Updated returns a channel that receives a value after Update. Several
// updates between receives are coalesced into one notification.
func (s *Source) Updated() <-chan struct{} { return s.updated }

// Anchors returns a copy of the configured anchors.
func (s *Source) Anchors() []Anchor { return append([]Anchor(nil), s.anchors...) }

func finite(lm Landmark) bool {
	for _, v := range [4]float64{lm.X, lm.Y, lm.Z, lm.Visibility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
