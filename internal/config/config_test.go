package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpr-image-prep/internal/transform"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultResolves(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 224, cfg.Augment.CanvasSize)
	assert.Equal(t, PatchSize{Width: 224, Height: 224}, cfg.Tile.PatchSize)
	require.Len(t, cfg.Augment.Transforms, 6)

	transforms, err := transform.FromSpecs(cfg.Augment.Transforms, transform.NewRand(1))
	require.NoError(t, err)
	names := make([]string, 0, len(transforms))
	for _, tr := range transforms {
		names = append(names, tr.Name())
	}
	assert.Equal(t, []string{
		"add_noise", "time_shift", "rotate_image", "flip_image", "elastic_transform", "spectral_shift",
	}, names)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
seed: 17
augment:
  input_folder: scans
  output_folder: out/aug
  transforms:
    - name: time_shift
      params: {shift: -12}
    - name: flip_image
      params: {mode: vertical}
tile:
  input_folder: profiles
  output_folder: out/tiles
  patch_size: {width: 128}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(17), cfg.Seed)
	assert.Equal(t, "scans", cfg.Augment.InputFolder)
	assert.Equal(t, 224, cfg.Augment.CanvasSize)
	require.Len(t, cfg.Augment.Transforms, 2)
	assert.Equal(t, "flip_image", cfg.Augment.Transforms[1].Name)
	assert.Equal(t, PatchSize{Width: 128, Height: 224}, cfg.Tile.PatchSize)

	tr, err := transform.New(cfg.Augment.Transforms[0].Name, cfg.Augment.Transforms[0].Params, nil)
	require.NoError(t, err)
	assert.Equal(t, &transform.TimeShift{Shift: -12}, tr)

	require.NoError(t, cfg.Augment.Validate())
	require.NoError(t, cfg.Tile.Validate())
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "run.yml", "augment:\n  input_dir: scans\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "run.toml", `
seed = 5

[augment]
input_folder = "scans"
output_folder = "aug"
canvas_size = 256

[[augment.transforms]]
name = "spectral_shift"
[augment.transforms.params]
shift = 100

[[augment.transforms]]
name = "elastic_transform"
[augment.transforms.params]
alpha = 34
sigma = 4.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Augment.CanvasSize)
	require.NoError(t, cfg.Augment.Validate())

	transforms, err := transform.FromSpecs(cfg.Augment.Transforms, transform.NewRand(cfg.Seed))
	require.NoError(t, err)
	assert.Equal(t, &transform.SpectralShift{Shift: 100}, transforms[0])
	elastic := transforms[1].(*transform.ElasticTransform)
	assert.Equal(t, 34.0, elastic.Alpha)
	assert.Equal(t, 4.0, elastic.Sigma)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "run.json", "{}"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "run.toml", "[tile]\npatch = 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
	}{
		{"missing augment input", func(c *Config) { c.Augment.InputFolder = "" }},
		{"zero canvas", func(c *Config) { c.Augment.CanvasSize = 0 }},
		{"no transforms", func(c *Config) { c.Augment.Transforms = nil }},
		{"unknown transform", func(c *Config) { c.Augment.Transforms[0].Name = "blur" }},
		{"missing tile output", func(c *Config) { c.Tile.OutputFolder = "" }},
		{"negative patch", func(c *Config) { c.Tile.PatchSize.Height = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Augment.InputFolder, cfg.Augment.OutputFolder = "in", "out"
			cfg.Tile.InputFolder, cfg.Tile.OutputFolder = "in", "out"
			tc.edit(&cfg)

			err := cfg.Augment.Validate()
			if err == nil {
				err = cfg.Tile.Validate()
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
