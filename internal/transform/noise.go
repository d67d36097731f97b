package transform

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// AddNoise adds Gaussian noise drawn per pixel from N(Mean, Std), scaled to
// the 8-bit range. The result is clipped to [0,255] and truncated.
type AddNoise struct {
	Mean float64
	Std  float64
	Rand *rand.Rand
}

func (n *AddNoise) Name() string {
	return "add_noise"
}

func (n *AddNoise) Validate() error {
	if n.Std < 0 || math.IsNaN(n.Std) || math.IsInf(n.Std, 0) {
		return fmt.Errorf("%w: std must be a finite value >= 0, got %v", ErrInvalidParameter, n.Std)
	}
	if math.IsNaN(n.Mean) || math.IsInf(n.Mean, 0) {
		return fmt.Errorf("%w: mean must be finite, got %v", ErrInvalidParameter, n.Mean)
	}
	if n.Rand == nil {
		return fmt.Errorf("%w: random source is required", ErrInvalidParameter)
	}
	return nil
}

func (n *AddNoise) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	if err := n.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	rows, cols := src.Rows(), src.Cols()
	output := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			noise := n.Rand.NormFloat64()*n.Std + n.Mean
			v := float64(src.GetUCharAt(y, x)) + noise*255
			output.SetUCharAt(y, x, clipToUint8(v))
		}
	}

	return output, nil
}

// clipToUint8 clamps v to [0,255] and truncates toward zero.
func clipToUint8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

var addNoiseFactory = Factory{
	Description: "Additive Gaussian noise scaled to the 8-bit range",
	Parameters: []ParameterInfo{
		{Name: "mean", Type: "float", Default: 0.0, Description: "Mean of the noise distribution"},
		{Name: "std", Type: "float", Default: 0.05, Description: "Standard deviation of the noise (fraction of 255)"},
	},
	Build: func(params map[string]any, rng *rand.Rand) (Transform, error) {
		mean, err := floatParam(params, "mean", 0)
		if err != nil {
			return nil, err
		}
		std, err := floatParam(params, "std", 0.05)
		if err != nil {
			return nil, err
		}
		return &AddNoise{Mean: mean, Std: std, Rand: rng}, nil
	},
}
