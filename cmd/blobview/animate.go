package main

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/blob/pipeline"
	"github.com/soypat/blob/render"
	"github.com/soypat/blob/tracker"
	"github.com/spf13/cobra"
)

func animateCmd() *cobra.Command {
	var (
		frames     int
		rate       float64
		stlPath    string
		resolution int
	)
	cmd := &cobra.Command{
		Use:   "animate",
		Short: "Run the frame pipeline on a synthetic tracker animation",
		Long: `Run the frame pipeline on a synthetic tracker animation.
A fake tracker publishes demo poses at the given rate while the pipeline
computes meshes concurrently, dropping stale frames when it falls behind.
Pipeline statistics are logged at the end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames <= 0 || !(rate > 0) {
				return errors.New("frames and rate must be positive")
			}
			p, src, err := newPipeline(resolution)
			if err != nil {
				return err
			}
			return animate(p, src, frames, rate, stlPath)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&frames, "frames", 120, "amount of tracker frames to publish")
	flags.Float64Var(&rate, "rate", 30, "tracker frame rate in Hz")
	resolutionFlag(flags, &resolution)
	flags.StringVarP(&stlPath, "out", "o", "", "write the last mesh to this STL file")
	return cmd
}

func animate(p *pipeline.Pipeline, src *tracker.Source, frames int, rate float64, stlPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	anchors := src.Anchors()
	start := time.Now()
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	for i := 0; i < frames; i++ {
		<-ticker.C
		src.Update(demoFrame(anchors, 2*math.Pi*float64(i)/float64(frames)))
	}
	ticker.Stop()
	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		return err
	}
	// Run may have been canceled mid frame, finish the latest pose.
	mesh, err := p.Frame(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	stats := p.Stats()
	log.WithFields(logrus.Fields{
		"published":  stats.Published,
		"dropped":    stats.Dropped,
		"last_frame": stats.LastFrame,
		"triangles":  stats.Triangles,
		"fps":        float64(stats.Published) / elapsed.Seconds(),
	}).Info("animation finished")
	if stlPath == "" {
		return nil
	}
	fp, err := os.Create(stlPath)
	if err != nil {
		return err
	}
	defer fp.Close()
	return render.WriteSTL(fp, mesh.Triangles())
}
