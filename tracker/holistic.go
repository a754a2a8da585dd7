package tracker

import (
	"encoding/json"
	"io"
)

// Landmark indices of a holistic body tracker.
const (
	faceNoseTip       = 1
	handPinkyTip      = 20
	poseLeftShoulder  = 11
	poseRightShoulder = 12
	poseLeftElbow     = 13
	poseRightElbow    = 14
	poseLeftHip       = 23
	poseRightHip      = 24
	poseLeftKnee      = 25
	poseRightKnee     = 26
)

// Holistic is the result of a holistic body tracker: face, hand and pose
// landmark lists. A nil list means that part was not detected.
type Holistic struct {
	Face      []Landmark `json:"faceLandmarks"`
	LeftHand  []Landmark `json:"leftHandLandmarks"`
	RightHand []Landmark `json:"rightHandLandmarks"`
	Pose      []Landmark `json:"poseLandmarks"`
}

// ReadHolistic decodes a JSON encoded Holistic result.
func ReadHolistic(r io.Reader) (Holistic, error) {
	var h Holistic
	err := json.NewDecoder(r).Decode(&h)
	return h, err
}

// FromHolistic extracts the anchor landmarks of a holistic result. Face and
// hand landmarks carry no visibility, their presence implies detection so they
// are given full visibility. The torso is the centroid of both shoulders and
// hips with the lowest of their visibilities and is absent unless all four exist.
func FromHolistic(h Holistic) Frame {
	f := make(Frame)
	detected := func(role Role, list []Landmark, idx int) {
		if idx < len(list) {
			lm := list[idx]
			lm.Visibility = 1
			f[role] = lm
		}
	}
	detected(Nose, h.Face, faceNoseTip)
	detected(LeftHand, h.LeftHand, handPinkyTip)
	detected(RightHand, h.RightHand, handPinkyTip)
	for role, idx := range map[Role]int{
		LeftElbow:  poseLeftElbow,
		RightElbow: poseRightElbow,
		LeftKnee:   poseLeftKnee,
		RightKnee:  poseRightKnee,
	} {
		if idx < len(h.Pose) {
			f[role] = h.Pose[idx]
		}
	}
	if len(h.Pose) > poseRightHip {
		f[Torso] = centroid(h.Pose[poseLeftShoulder], h.Pose[poseRightShoulder], h.Pose[poseLeftHip], h.Pose[poseRightHip])
	}
	return f
}

func centroid(lms ...Landmark) Landmark {
	c := Landmark{Visibility: lms[0].Visibility}
	for _, lm := range lms {
		c.X += lm.X
		c.Y += lm.Y
		c.Z += lm.Z
		c.Visibility = min(c.Visibility, lm.Visibility)
	}
	n := float64(len(lms))
	c.X /= n
	c.Y /= n
	c.Z /= n
	return c
}
