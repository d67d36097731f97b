// Image and signal transforms used to augment GPR scans
package transform

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/samber/lo"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidParameter is returned when a transform parameter is outside its domain.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidInput is returned when the raster handed to Apply is not a non-empty 8-bit single channel Mat.
	ErrInvalidInput = errors.New("invalid input raster")

	// ErrUnknownTransform is returned by the registry for names it does not know.
	ErrUnknownTransform = errors.New("unknown transform")
)

// Transform is one augmentation over a single grayscale raster.
// Apply never mutates src and always returns a newly allocated Mat of the
// same size and type, which the caller must Close.
type Transform interface {
	Name() string
	Validate() error
	Apply(src gocv.Mat) (gocv.Mat, error)
}

// Spec names a registered transform together with its raw parameters, as
// they come from a config file or from code.
type Spec struct {
	Name   string         `yaml:"name" toml:"name"`
	Params map[string]any `yaml:"params" toml:"params"`
}

// ParameterInfo describes a parameter for the CLI listing
type ParameterInfo struct {
	Name        string
	Type        string // "int", "float", "enum"
	Default     any
	Description string
	Options     []string
}

// Factory builds a transform from raw parameters. rng is only used by the
// randomized transforms and may be nil for the others.
type Factory struct {
	Description string
	Parameters  []ParameterInfo
	Build       func(params map[string]any, rng *rand.Rand) (Transform, error)
}

var registry = make(map[string]Factory)

// Register adds or replaces the factory for name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	_, exists := registry[name]
	return exists
}

// Names returns the registered transform names in sorted order.
func Names() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// New builds and validates the transform registered under name.
func New(name string, params map[string]any, rng *rand.Rand) (Transform, error) {
	factory, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}

	t, err := factory.Build(params, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// FromSpecs resolves an ordered augmentation set. All transforms share rng.
func FromSpecs(specs []Spec, rng *rand.Rand) ([]Transform, error) {
	transforms := make([]Transform, 0, len(specs))
	for i, spec := range specs {
		t, err := New(spec.Name, spec.Params, rng)
		if err != nil {
			return nil, fmt.Errorf("transform %d: %w", i+1, err)
		}
		transforms = append(transforms, t)
	}
	return transforms, nil
}

// NewRand returns the seeded generator used by the randomized transforms.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// validateInput checks that mat is a usable grayscale raster
func validateInput(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("%w: invalid dimensions: %dx%d", ErrInvalidInput, mat.Cols(), mat.Rows())
	}

	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%w: expected 8-bit single channel, got %v", ErrInvalidInput, mat.Type())
	}

	return nil
}

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	val, ok := params[key]
	if !ok {
		return def, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameter, key, val)
	}
}

func intParam(params map[string]any, key string, def int) (int, error) {
	val, ok := params[key]
	if !ok {
		return def, nil
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidParameter, key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidParameter, key, val)
	}
}

func init() {
	Register("add_noise", addNoiseFactory)
	Register("time_shift", timeShiftFactory)
	Register("scale_image", scaleImageFactory)
	Register("rotate_image", rotateImageFactory)
	Register("flip_image", flipImageFactory)
	Register("elastic_transform", elasticTransformFactory)
	Register("spectral_shift", spectralShiftFactory)
}
