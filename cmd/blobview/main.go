// Command blobview renders body blob meshes from tracking frames. It writes
// STL files with shaded PNG previews and benchmarks the frame pipeline on a
// synthetic animation.
package main

import (
	"os"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/soypat/blob/config"
	"github.com/soypat/blob/pipeline"
	"github.com/soypat/blob/tracker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	log        = logrus.New()
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blobview",
		Short: "Render metaball body blobs from tracked landmarks",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML configuration file. Defaults are used when empty")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every frame")
	root.AddCommand(renderCmd(), animateCmd(), configCmd())
	return root
}

// loadConfig returns the configuration selected by the --config flag.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	c, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	log.WithField("path", configPath).Debugf("loaded config %s", pretty.Sprint(c))
	return c, nil
}

func resolutionFlag(flags *pflag.FlagSet, n *int) {
	flags.IntVarP(n, "resolution", "n", 0, "lattice resolution, overrides the configuration")
}

// newPipeline builds the tracker source and frame pipeline from the
// configuration. A positive resolution overrides the configured one.
func newPipeline(resolution int) (*pipeline.Pipeline, *tracker.Source, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if resolution > 0 {
		c.Lattice.Resolution = resolution
		if err := c.Validate(); err != nil {
			return nil, nil, err
		}
	}
	pc, err := c.PipelineConfig()
	if err != nil {
		return nil, nil, err
	}
	pc.Log = log
	src, err := tracker.NewSource(c.TrackerAnchors())
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(src, pc)
	if err != nil {
		return nil, nil, err
	}
	return p, src, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return c.Encode(os.Stdout)
		},
	}
}
