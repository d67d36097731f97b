// GPR image preparation: batch augmentation and patch tiling
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gpr-image-prep/internal/augment"
	"gpr-image-prep/internal/config"
	"gpr-image-prep/internal/imageio"
	"gpr-image-prep/internal/tiler"
	"gpr-image-prep/internal/transform"
)

const (
	AppName    = "gprprep"
	AppVersion = "1.0.0"
)

type options struct {
	debug      bool
	configPath string
	seed       uint64

	input       string
	output      string
	patchWidth  int
	patchHeight int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          AppName,
		Short:        "Prepare GPR scans for training: augmentation and tiling",
		Version:      AppVersion,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug mode with verbose logging")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML or TOML config file")
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "Seed for randomized transforms (0 picks one from the clock)")

	root.AddCommand(newAugmentCommand(opts), newTileCommand(opts), newTransformsCommand())
	return root
}

func newAugmentCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "augment",
		Short: "Write every augmentation variant of each .jpg scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.input != "" {
				cfg.Augment.InputFolder = opts.input
			}
			if opts.output != "" {
				cfg.Augment.OutputFolder = opts.output
			}

			logger := initLogger(opts.debug)
			logger.WithFields(logrus.Fields{
				"version": AppVersion,
				"seed":    cfg.Seed,
			}).Info("Starting augmentation")

			loader := imageio.NewImageLoader(logger)
			a, err := augment.New(cfg.Augment, loader, transform.NewRand(cfg.Seed), logger)
			if err != nil {
				return err
			}
			for i, t := range a.Transforms() {
				logger.WithFields(logrus.Fields{
					"index":     i + 1,
					"transform": t.Name(),
				}).Debug("Augmentation variant")
			}

			_, err = a.Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Folder of source scans")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Folder for augmented images")
	return cmd
}

func newTileCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Cut images into fixed-size patches named 001.jpg, 002.jpg, ...",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.input != "" {
				cfg.Tile.InputFolder = opts.input
			}
			if opts.output != "" {
				cfg.Tile.OutputFolder = opts.output
			}
			if cmd.Flags().Changed("patch-width") {
				cfg.Tile.PatchSize.Width = opts.patchWidth
			}
			if cmd.Flags().Changed("patch-height") {
				cfg.Tile.PatchSize.Height = opts.patchHeight
			}

			logger := initLogger(opts.debug)
			logger.WithFields(logrus.Fields{
				"version": AppVersion,
				"patch":   fmt.Sprintf("%dx%d", cfg.Tile.PatchSize.Width, cfg.Tile.PatchSize.Height),
			}).Info("Starting tiling")

			tl, err := tiler.New(cfg.Tile, imageio.NewImageLoader(logger), logger)
			if err != nil {
				return err
			}

			_, err = tl.Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Folder of source images")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Folder for patches")
	cmd.Flags().IntVar(&opts.patchWidth, "patch-width", config.DefaultPatchSize, "Patch width in pixels")
	cmd.Flags().IntVar(&opts.patchHeight, "patch-height", config.DefaultPatchSize, "Patch height in pixels")
	return cmd
}

func newTransformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transforms",
		Short: "List the available transforms and their parameters",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, name := range transform.Names() {
				factory, _ := transform.Lookup(name)
				fmt.Fprintf(out, "%s: %s\n", name, factory.Description)
				for _, p := range factory.Parameters {
					line := fmt.Sprintf("  %s (%s, default %v): %s", p.Name, p.Type, p.Default, p.Description)
					if len(p.Options) > 0 {
						line += " [" + strings.Join(p.Options, ", ") + "]"
					}
					fmt.Fprintln(out, line)
				}
			}
		},
	}
}

// loadConfig starts from the defaults or the --config file and applies
// the global flags.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return cfg, nil
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
