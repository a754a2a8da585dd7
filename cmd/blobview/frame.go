package main

import (
	"context"
	"errors"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/soypat/blob/render"
	"github.com/soypat/blob/tracker"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

func renderCmd() *cobra.Command {
	var (
		framePath  string
		stlPath    string
		pngPath    string
		resolution int
		phase      float64
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a single tracking frame to STL and a PNG preview",
		Long: `Render a single tracking frame to STL and a PNG preview.
The frame is read from a JSON encoded holistic tracker result or, when no
frame file is given, taken from the built in demo pose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, err := newPipeline(resolution)
			if err != nil {
				return err
			}
			frame := demoFrame(src.Anchors(), phase)
			if framePath != "" {
				frame, err = readFrame(framePath)
				if err != nil {
					return err
				}
			}
			balls := src.Update(frame)
			mesh, err := p.Frame(context.Background())
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"balls":     balls,
				"triangles": mesh.TriangleCount(),
				"elapsed":   p.Stats().LastFrame,
			}).Info("rendered frame")
			if mesh.IsEmpty() {
				return errors.New("frame produced an empty mesh, nothing to write")
			}
			fp, err := os.Create(stlPath)
			if err != nil {
				return err
			}
			defer fp.Close()
			if err := render.WriteSTL(fp, mesh.Triangles()); err != nil {
				return err
			}
			if err := fp.Close(); err != nil {
				return err
			}
			if pngPath == "" {
				return nil
			}
			return stlToPNG(stlPath, pngPath, defaultView)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&framePath, "frame", "f", "", "JSON holistic tracker result to render")
	flags.StringVarP(&stlPath, "out", "o", "blob.stl", "output STL file")
	flags.StringVar(&pngPath, "png", "blob.png", "output PNG preview. Empty skips the preview")
	resolutionFlag(flags, &resolution)
	flags.Float64Var(&phase, "phase", 0, "demo pose animation phase in radians")
	return cmd
}

func readFrame(path string) (tracker.Frame, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	h, err := tracker.ReadHolistic(fp)
	if err != nil {
		return nil, err
	}
	return tracker.FromHolistic(h), nil
}

// demoPose returns the world position of each role at animation phase t:
// a swaying torso and head with waving arms.
func demoPose(t float64) map[tracker.Role]r3.Vec {
	sway := 0.6 * math.Sin(t)
	wave := math.Sin(2 * t)
	return map[tracker.Role]r3.Vec{
		tracker.Torso:      {X: sway, Y: -1},
		tracker.Nose:       {X: 1.2 * sway, Y: 2.2, Z: 0.3},
		tracker.LeftElbow:  {X: -3.2, Y: 0.5 + 1.5*wave, Z: 0.2},
		tracker.RightElbow: {X: 3.2, Y: 0.5 - 1.5*wave, Z: 0.2},
		tracker.LeftHand:   {X: -4, Y: 2 + 2*wave},
		tracker.RightHand:  {X: 4, Y: 2 - 2*wave},
		tracker.LeftKnee:   {X: -1, Y: -5},
		tracker.RightKnee:  {X: 1, Y: -5},
	}
}

// demoFrame synthesizes the tracker frame that places the anchors at the demo pose.
func demoFrame(anchors []tracker.Anchor, t float64) tracker.Frame {
	pose := demoPose(t)
	f := make(tracker.Frame, len(anchors))
	for _, a := range anchors {
		if p, ok := pose[a.Role]; ok {
			f[a.Role] = a.Landmark(p, 1)
		}
	}
	return f
}
