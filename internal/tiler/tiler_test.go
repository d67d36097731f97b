package tiler

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"gpr-image-prep/internal/config"
	"gpr-image-prep/internal/imageio"
)

func newTiler(t *testing.T, cfg config.Tile) *Tiler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tl, err := New(cfg, imageio.NewImageLoader(logger), logger)
	require.NoError(t, err)
	return tl
}

func writeBlank(t *testing.T, path string, rows, cols int) {
	t.Helper()
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	defer mat.Close()
	require.True(t, gocv.IMWrite(path, mat))
}

func testConfig(t *testing.T) config.Tile {
	cfg := config.Default().Tile
	cfg.InputFolder = t.TempDir()
	cfg.OutputFolder = filepath.Join(t.TempDir(), "patches")
	return cfg
}

func TestPatchName(t *testing.T) {
	assert.Equal(t, "001.jpg", PatchName(1))
	assert.Equal(t, "042.jpg", PatchName(42))
	assert.Equal(t, "1234.jpg", PatchName(1234))
}

func TestPatchRects(t *testing.T) {
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 224, 224)}, PatchRects(256, 256, 224, 224))
	assert.Empty(t, PatchRects(200, 500, 224, 224))
	assert.Empty(t, PatchRects(100, 100, 0, 10))

	rects := PatchRects(100, 70, 30, 20)
	require.Len(t, rects, 9)
	assert.Equal(t, image.Rect(0, 0, 30, 20), rects[0])
	assert.Equal(t, image.Rect(30, 0, 60, 20), rects[1])
	assert.Equal(t, image.Rect(60, 40, 90, 60), rects[8])
}

func TestRunSinglePatchDiscardsMargins(t *testing.T) {
	cfg := testConfig(t)
	writeBlank(t, filepath.Join(cfg.InputFolder, "profile.png"), 256, 256)

	summary, err := newTiler(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 1, Processed: 1, Patches: 1}, summary)

	entries, err := os.ReadDir(cfg.OutputFolder)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "001.jpg", entries[0].Name())

	patch := gocv.IMRead(filepath.Join(cfg.OutputFolder, "001.jpg"), gocv.IMReadColor)
	defer patch.Close()
	assert.Equal(t, 224, patch.Rows())
	assert.Equal(t, 224, patch.Cols())
}

func TestRunNumbersAcrossImages(t *testing.T) {
	cfg := testConfig(t)
	cfg.PatchSize = config.PatchSize{Width: 50, Height: 40}
	writeBlank(t, filepath.Join(cfg.InputFolder, "a.jpg"), 80, 100)  // 2x2
	writeBlank(t, filepath.Join(cfg.InputFolder, "b.JPEG"), 40, 170) // 1x3
	writeBlank(t, filepath.Join(cfg.InputFolder, "c.png"), 30, 30)   // none
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputFolder, "d.png"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputFolder, "readme.md"), []byte("#"), 0o644))

	summary, err := newTiler(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 4, Processed: 3, Skipped: 1, Patches: 7}, summary)

	entries, err := os.ReadDir(cfg.OutputFolder)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"001.jpg", "002.jpg", "003.jpg", "004.jpg", "005.jpg", "006.jpg", "007.jpg"}, names)
}

func TestNewRejectsBadPatchSize(t *testing.T) {
	cfg := testConfig(t)
	cfg.PatchSize.Width = 0

	logger := logrus.New()
	_, err := New(cfg, imageio.NewImageLoader(logger), logger)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
