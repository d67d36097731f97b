package augment

import (
	"context"
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
	"gpr-image-prep/internal/transform"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeScan(t *testing.T, path string, rows, cols int) {
	t.Helper()
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	defer mat.Close()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			mat.SetUCharAt(y, x, uint8((x+y)%256))
		}
	}
	require.True(t, gocv.IMWrite(path, mat))
}

func newAugmentor(t *testing.T, cfg config.Augment) *Augmentor {
	t.Helper()
	logger := quietLogger()
	a, err := New(cfg, imageio.NewImageLoader(logger), transform.NewRand(11), logger)
	require.NoError(t, err)
	return a
}

func testConfig(t *testing.T) config.Augment {
	cfg := config.Default().Augment
	cfg.InputFolder = t.TempDir()
	cfg.OutputFolder = filepath.Join(t.TempDir(), "augmented")
	return cfg
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "line_07_aug_1.jpg", OutputName("line_07.jpg", 1))
	assert.Equal(t, "scan.v2_aug_6.jpg", OutputName("scan.v2.JPG", 6))
}

func TestTransformsFollowConfigOrder(t *testing.T) {
	a := newAugmentor(t, testConfig(t))

	var names []string
	for _, tr := range a.Transforms() {
		names = append(names, tr.Name())
	}
	assert.Equal(t, []string{
		"add_noise", "time_shift", "rotate_image",
		"flip_image", "elastic_transform", "spectral_shift",
	}, names)
}

func TestRunWritesEveryVariant(t *testing.T) {
	cfg := testConfig(t)
	for _, name := range []string{"a.jpg", "b.jpg", "c.JPG"} {
		writeScan(t, filepath.Join(cfg.InputFolder, name), 300, 180)
	}
	// Not a candidate for augmentation.
	writeScan(t, filepath.Join(cfg.InputFolder, "d.png"), 10, 10)

	summary, err := newAugmentor(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 3, Processed: 3, Written: 18}, summary)

	var want []string
	for _, base := range []string{"a", "b", "c"} {
		for i := 1; i <= 6; i++ {
			want = append(want, OutputName(base+".jpg", i))
		}
	}
	assert.ElementsMatch(t, want, listDir(t, cfg.OutputFolder))

	out := gocv.IMRead(filepath.Join(cfg.OutputFolder, "b_aug_4.jpg"), gocv.IMReadUnchanged)
	defer out.Close()
	assert.Equal(t, 224, out.Rows())
	assert.Equal(t, 224, out.Cols())
	assert.Equal(t, 1, out.Channels())
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transforms = cfg.Transforms[:2]
	writeScan(t, filepath.Join(cfg.InputFolder, "good.jpg"), 64, 64)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputFolder, "broken.jpg"), []byte("garbage"), 0o644))

	summary, err := newAugmentor(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 2, Processed: 1, Skipped: 1, Written: 2}, summary)
	assert.ElementsMatch(t, []string{"good_aug_1.jpg", "good_aug_2.jpg"}, listDir(t, cfg.OutputFolder))
}

func TestInvalidFlipModeWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transforms = append(cfg.Transforms, transform.Spec{
		Name:   "flip_image",
		Params: map[string]any{"mode": "diagonal"},
	})
	writeScan(t, filepath.Join(cfg.InputFolder, "a.jpg"), 32, 32)

	logger := quietLogger()
	_, err := New(cfg, imageio.NewImageLoader(logger), transform.NewRand(1), logger)
	require.ErrorIs(t, err, transform.ErrInvalidParameter)
	assert.NoDirExists(t, cfg.OutputFolder)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CanvasSize = 0

	logger := quietLogger()
	_, err := New(cfg, imageio.NewImageLoader(logger), transform.NewRand(1), logger)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := testConfig(t)
	writeScan(t, filepath.Join(cfg.InputFolder, "a.jpg"), 32, 32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newAugmentor(t, cfg).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Written)
}

func TestRunMissingInputFolder(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFolder = filepath.Join(cfg.InputFolder, "missing")

	_, err := newAugmentor(t, cfg).Run(context.Background())
	assert.Error(t, err)
}
