// Run configuration for the augmentation and tiling tools
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gpr-image-prep/internal/transform"
)

const (
	// DefaultCanvasSize is the square size every augmentation source is resized to.
	DefaultCanvasSize = 224

	// DefaultPatchSize is the width and height of a tile.
	DefaultPatchSize = 224
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds everything a batch run needs
type Config struct {
	// Seed feeds the randomized transforms. Zero means a time based seed.
	Seed    uint64  `yaml:"seed" toml:"seed"`
	Augment Augment `yaml:"augment" toml:"augment"`
	Tile    Tile    `yaml:"tile" toml:"tile"`
}

// Augment configures the batch augmentor
type Augment struct {
	InputFolder  string           `yaml:"input_folder" toml:"input_folder"`
	OutputFolder string           `yaml:"output_folder" toml:"output_folder"`
	CanvasSize   int              `yaml:"canvas_size" toml:"canvas_size"`
	Transforms   []transform.Spec `yaml:"transforms" toml:"transforms"`
}

// Tile configures the patch tiler
type Tile struct {
	InputFolder  string    `yaml:"input_folder" toml:"input_folder"`
	OutputFolder string    `yaml:"output_folder" toml:"output_folder"`
	PatchSize    PatchSize `yaml:"patch_size" toml:"patch_size"`
}

// PatchSize is the tile size in pixels
type PatchSize struct {
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// DefaultTransforms is the augmentation set used for GPR scans.
func DefaultTransforms() []transform.Spec {
	return []transform.Spec{
		{Name: "add_noise", Params: map[string]any{"mean": 0.0, "std": 0.15}},
		{Name: "time_shift", Params: map[string]any{"shift": 20}},
		{Name: "rotate_image", Params: map[string]any{"angle": 15.0}},
		{Name: "flip_image", Params: map[string]any{"mode": string(transform.FlipHorizontal)}},
		{Name: "elastic_transform", Params: map[string]any{"alpha": 34.0, "sigma": 4.0}},
		{Name: "spectral_shift", Params: map[string]any{"shift": 100}},
	}
}

// Default returns a config with every parameter at its standard value and
// no folders set.
func Default() Config {
	return Config{
		Augment: Augment{
			CanvasSize: DefaultCanvasSize,
			Transforms: DefaultTransforms(),
		},
		Tile: Tile{
			PatchSize: PatchSize{Width: DefaultPatchSize, Height: DefaultPatchSize},
		},
	}
}

// Load reads a YAML or TOML file over the defaults. Sections missing from
// the file keep their default values. A transform list in the file
// replaces the default list entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var fileCfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fileCfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &fileCfg)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidConfig, path, undecoded)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}

	cfg.merge(fileCfg)
	return cfg, nil
}

func (c *Config) merge(other Config) {
	if other.Seed != 0 {
		c.Seed = other.Seed
	}

	if other.Augment.InputFolder != "" {
		c.Augment.InputFolder = other.Augment.InputFolder
	}
	if other.Augment.OutputFolder != "" {
		c.Augment.OutputFolder = other.Augment.OutputFolder
	}
	if other.Augment.CanvasSize != 0 {
		c.Augment.CanvasSize = other.Augment.CanvasSize
	}
	if len(other.Augment.Transforms) > 0 {
		c.Augment.Transforms = other.Augment.Transforms
	}

	if other.Tile.InputFolder != "" {
		c.Tile.InputFolder = other.Tile.InputFolder
	}
	if other.Tile.OutputFolder != "" {
		c.Tile.OutputFolder = other.Tile.OutputFolder
	}
	if other.Tile.PatchSize.Width != 0 {
		c.Tile.PatchSize.Width = other.Tile.PatchSize.Width
	}
	if other.Tile.PatchSize.Height != 0 {
		c.Tile.PatchSize.Height = other.Tile.PatchSize.Height
	}
}

// Validate checks the augmentation section
func (a Augment) Validate() error {
	if a.InputFolder == "" || a.OutputFolder == "" {
		return fmt.Errorf("%w: augment input and output folders are required", ErrInvalidConfig)
	}
	if a.CanvasSize <= 0 {
		return fmt.Errorf("%w: canvas_size must be positive, got %d", ErrInvalidConfig, a.CanvasSize)
	}
	if len(a.Transforms) == 0 {
		return fmt.Errorf("%w: at least one transform is required", ErrInvalidConfig)
	}
	for i, spec := range a.Transforms {
		if !transform.IsRegistered(spec.Name) {
			return fmt.Errorf("%w: transform %d: unknown name %q", ErrInvalidConfig, i+1, spec.Name)
		}
	}
	return nil
}

// Validate checks the tiling section
func (t Tile) Validate() error {
	if t.InputFolder == "" || t.OutputFolder == "" {
		return fmt.Errorf("%w: tile input and output folders are required", ErrInvalidConfig)
	}
	if t.PatchSize.Width <= 0 || t.PatchSize.Height <= 0 {
		return fmt.Errorf("%w: patch size must be positive, got %dx%d",
			ErrInvalidConfig, t.PatchSize.Width, t.PatchSize.Height)
	}
	return nil
}
