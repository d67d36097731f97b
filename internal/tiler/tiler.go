// Slicing of large GPR profiles into fixed-size patches
package tiler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"gpr-image-prep/internal/config"
	"gpr-image-prep/internal/imageio"
)

// Summary reports what a run did
type Summary struct {
	Found     int
	Processed int
	Skipped   int
	Patches   int
}

// Tiler cuts every candidate image into whole, non-overlapping patches.
// Patch numbering is shared across the whole batch.
type Tiler struct {
	cfg    config.Tile
	loader *imageio.ImageLoader
	logger *logrus.Logger
}

func New(cfg config.Tile, loader *imageio.ImageLoader, logger *logrus.Logger) (*Tiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tiler{
		cfg:    cfg,
		loader: loader,
		logger: logger,
	}, nil
}

// PatchName is the file name of the n-th (1-based) patch of a batch.
func PatchName(n int) string {
	return fmt.Sprintf("%03d.jpg", n)
}

// PatchRects returns the whole patches of a width x height image in
// row-major order. Strips narrower or shorter than a patch are dropped.
func PatchRects(width, height, patchWidth, patchHeight int) []image.Rectangle {
	if patchWidth <= 0 || patchHeight <= 0 {
		return nil
	}

	rects := make([]image.Rectangle, 0, (width/patchWidth)*(height/patchHeight))
	for y := 0; y+patchHeight <= height; y += patchHeight {
		for x := 0; x+patchWidth <= width; x += patchWidth {
			rects = append(rects, image.Rect(x, y, x+patchWidth, y+patchHeight))
		}
	}
	return rects
}

// Run tiles every candidate in the input folder. Unreadable files are
// logged and skipped; write failures stop the run.
func (t *Tiler) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if err := t.loader.EnsureDir(t.cfg.OutputFolder); err != nil {
		return summary, err
	}

	files, err := t.loader.ListImages(t.cfg.InputFolder, imageio.TileExtensions)
	if err != nil {
		return summary, err
	}
	summary.Found = len(files)

	for _, file := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		img, err := t.loader.LoadColor(filepath.Join(t.cfg.InputFolder, file))
		if errors.Is(err, imageio.ErrDecode) {
			t.logger.WithField("file", file).Warn("Could not read image, skipping")
			summary.Skipped++
			continue
		}
		if err != nil {
			return summary, err
		}

		written, err := t.tileImage(img, summary.Patches+1)
		img.Close()
		summary.Patches += written
		if err != nil {
			return summary, fmt.Errorf("tiling %s: %w", file, err)
		}

		summary.Processed++
		t.logger.WithFields(logrus.Fields{
			"file":    file,
			"patches": written,
		}).Debug("Image tiled")
	}

	t.logger.WithFields(logrus.Fields{
		"output":  t.cfg.OutputFolder,
		"total":   summary.Patches,
		"skipped": summary.Skipped,
	}).Info("Cropped patches saved")

	return summary, nil
}

// tileImage writes the patches of img numbered from first on and returns
// how many it wrote.
func (t *Tiler) tileImage(img gocv.Mat, first int) (int, error) {
	rects := PatchRects(img.Cols(), img.Rows(), t.cfg.PatchSize.Width, t.cfg.PatchSize.Height)

	for i, rect := range rects {
		patch := img.Region(rect)
		err := t.loader.SaveImage(patch, filepath.Join(t.cfg.OutputFolder, PatchName(first+i)))
		patch.Close()
		if err != nil {
			return i, err
		}
	}
	return len(rects), nil
}
