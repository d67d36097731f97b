// Batch augmentation of GPR scans
package augment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gpr-image-prep/internal/config"
	"gpr-image-prep/internal/imageio"
	"gpr-image-prep/internal/metrics"
	"gpr-image-prep/internal/transform"
)

// Summary reports what a run did
type Summary struct {
	Found     int
	Processed int
	Skipped   int
	Written   int
}

// Augmentor applies an ordered set of transforms to every source scan.
// Each transform consumes the original scan, never the output of another.
type Augmentor struct {
	cfg        config.Augment
	transforms []transform.Transform
	loader     *imageio.ImageLoader
	metrics    *metrics.Evaluator
	logger     *logrus.Logger
}

// New validates cfg and resolves its transform list. Nothing touches the
// filesystem until Run.
func New(cfg config.Augment, loader *imageio.ImageLoader, rng *rand.Rand, logger *logrus.Logger) (*Augmentor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transforms, err := transform.FromSpecs(cfg.Transforms, rng)
	if err != nil {
		return nil, fmt.Errorf("invalid augmentation set: %w", err)
	}

	return &Augmentor{
		cfg:        cfg,
		transforms: transforms,
		loader:     loader,
		metrics:    metrics.NewEvaluator(),
		logger:     logger,
	}, nil
}

// OutputName is the file name of the index-th (1-based) variant of source.
func OutputName(source string, index int) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return fmt.Sprintf("%s_aug_%d.jpg", base, index)
}

// Run augments every candidate in the input folder. Unreadable files are
// logged and skipped. Any filesystem or transform failure stops the run;
// variants written before the failure are left in place.
func (a *Augmentor) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	start := time.Now()

	if err := a.loader.EnsureDir(a.cfg.OutputFolder); err != nil {
		return summary, err
	}

	files, err := a.loader.ListImages(a.cfg.InputFolder, imageio.AugmentExtensions)
	if err != nil {
		return summary, err
	}
	summary.Found = len(files)

	a.logger.WithFields(logrus.Fields{
		"input":      a.cfg.InputFolder,
		"output":     a.cfg.OutputFolder,
		"images":     len(files),
		"transforms": len(a.transforms),
	}).Info("Augmenting images")

	for i, file := range files {
		select {
		case <-ctx.Done():
			a.logger.WithField("processed", summary.Processed).Warn("Augmentation cancelled")
			return summary, ctx.Err()
		default:
		}

		written, err := a.processImage(file)
		summary.Written += written
		if errors.Is(err, imageio.ErrDecode) {
			a.logger.WithField("file", file).Warn("Could not read image, skipping")
			summary.Skipped++
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("augmenting %s: %w", file, err)
		}

		summary.Processed++
		a.logger.WithFields(logrus.Fields{
			"file":     file,
			"progress": fmt.Sprintf("%d/%d", i+1, len(files)),
		}).Info("Image augmented")
	}

	a.logger.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"written":   summary.Written,
		"duration":  time.Since(start).String(),
	}).Info("Augmentation complete")

	return summary, nil
}

// processImage writes every variant of one source and returns how many
// files it wrote.
func (a *Augmentor) processImage(file string) (int, error) {
	raw, err := a.loader.LoadGrayscale(filepath.Join(a.cfg.InputFolder, file))
	if err != nil {
		return 0, err
	}
	source := a.loader.Resize(raw, a.cfg.CanvasSize, a.cfg.CanvasSize)
	raw.Close()
	defer source.Close()

	written := 0
	for i, t := range a.transforms {
		variant, err := t.Apply(source)
		if err != nil {
			return written, fmt.Errorf("%s: %w", t.Name(), err)
		}

		if a.logger.IsLevelEnabled(logrus.DebugLevel) {
			a.logger.WithFields(logrus.Fields{
				"file":      file,
				"transform": t.Name(),
				"quality":   a.metrics.CalculateAll(source, variant),
			}).Debug("Variant quality")
		}

		outPath := filepath.Join(a.cfg.OutputFolder, OutputName(file, i+1))
		err = a.loader.SaveImage(variant, outPath)
		variant.Close()
		if err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// Transforms returns the resolved augmentation set in output order
func (a *Augmentor) Transforms() []transform.Transform {
	return a.transforms
}
