// Image discovery, decoding and encoding for the batch tools
package imageio

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	// ErrDecode marks a candidate file that could not be decoded as an image.
	ErrDecode = errors.New("decode failure")

	// ErrUnsupportedFormat marks a path whose extension is not handled.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

var (
	// AugmentExtensions are the candidate extensions for augmentation.
	AugmentExtensions = []string{".jpg"}

	// TileExtensions are the candidate extensions for tiling.
	TileExtensions = []string{".jpg", ".jpeg", ".png"}
)

// ImageLoader handles image file operations
type ImageLoader struct {
	logger *logrus.Logger
}

func NewImageLoader(logger *logrus.Logger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

// ListImages returns the names of regular files in dir whose extension,
// compared case-insensitively, is one of extensions. Names come back in
// directory order, which os.ReadDir sorts by filename.
func (il *ImageLoader) ListImages(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input folder %s: %w", dir, err)
	}

	files := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if entry.IsDir() {
			return "", false
		}
		return entry.Name(), hasExtension(entry.Name(), extensions)
	})

	il.logger.WithFields(logrus.Fields{
		"folder":     dir,
		"candidates": len(files),
		"extensions": extensions,
	}).Debug("Listed candidate images")

	return files, nil
}

// LoadGrayscale decodes path as a single channel 8-bit image
func (il *ImageLoader) LoadGrayscale(path string) (gocv.Mat, error) {
	return il.load(path, gocv.IMReadGrayScale)
}

// LoadColor decodes path as a 3-channel BGR image
func (il *ImageLoader) LoadColor(path string) (gocv.Mat, error) {
	return il.load(path, gocv.IMReadColor)
}

func (il *ImageLoader) load(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !isSupportedImageFormat(path) {
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	mat := gocv.IMRead(path, flags)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrDecode, path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Debug("Image loaded")

	return mat, nil
}

// Resize returns a bilinear resize of mat to width x height
func (il *ImageLoader) Resize(mat gocv.Mat, width, height int) gocv.Mat {
	resized := gocv.NewMat()
	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return resized
}

// SaveImage encodes mat to path. The format follows the extension.
func (il *ImageLoader) SaveImage(mat gocv.Mat, path string) error {
	if mat.Empty() {
		return fmt.Errorf("cannot save empty image: %s", path)
	}

	if !isSupportedImageFormat(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
	}).Debug("Image saved")

	return nil
}

// EnsureDir creates dir and any missing parents
func (il *ImageLoader) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder %s: %w", dir, err)
	}
	return nil
}

func isSupportedImageFormat(path string) bool {
	return hasExtension(path, []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"})
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return lo.Contains(extensions, ext)
}
