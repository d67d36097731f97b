package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// ElasticTransform warps the raster with a smoothed random displacement
// field. Each call draws fresh fields from Rand.
type ElasticTransform struct {
	Alpha float64
	Sigma float64
	Rand  *rand.Rand
}

func (e *ElasticTransform) Name() string {
	return "elastic_transform"
}

func (e *ElasticTransform) Validate() error {
	if math.IsNaN(e.Alpha) || math.IsInf(e.Alpha, 0) {
		return fmt.Errorf("%w: alpha must be finite, got %v", ErrInvalidParameter, e.Alpha)
	}
	if !(e.Sigma > 0) || math.IsInf(e.Sigma, 0) {
		return fmt.Errorf("%w: sigma must be a finite value > 0, got %v", ErrInvalidParameter, e.Sigma)
	}
	if e.Rand == nil {
		return fmt.Errorf("%w: random source is required", ErrInvalidParameter)
	}
	return nil
}

func (e *ElasticTransform) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	if err := e.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	rows, cols := src.Rows(), src.Cols()

	dx := e.displacementField(rows, cols)
	defer dx.Close()
	dy := e.displacementField(rows, cols)
	defer dy.Close()

	mapX := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	defer mapX.Close()
	mapY := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	defer mapY.Close()

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			mapX.SetFloatAt(y, x, float32(float64(x)+dx.GetDoubleAt(y, x)))
			mapY.SetFloatAt(y, x, float32(float64(y)+dy.GetDoubleAt(y, x)))
		}
	}

	output := gocv.NewMat()
	gocv.Remap(src, &output, &mapX, &mapY, gocv.InterpolationLinear, gocv.BorderReflect, color.RGBA{})

	return output, nil
}

// displacementField draws uniform values in [-1,1], smooths them with a
// Gaussian of radius Sigma and scales the result by Alpha.
func (e *ElasticTransform) displacementField(rows, cols int) gocv.Mat {
	field := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64FC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			field.SetDoubleAt(y, x, e.Rand.Float64()*2-1)
		}
	}

	// Kernel extent follows the usual truncation at four standard deviations.
	radius := int(4*e.Sigma + 0.5)
	ksize := 2*radius + 1

	smoothed := gocv.NewMat()
	gocv.GaussianBlur(field, &smoothed, image.Pt(ksize, ksize), e.Sigma, e.Sigma, gocv.BorderReflect)
	field.Close()

	smoothed.MultiplyFloat(float32(e.Alpha))
	return smoothed
}

var elasticTransformFactory = Factory{
	Description: "Elastic deformation from a smoothed random displacement field",
	Parameters: []ParameterInfo{
		{Name: "alpha", Type: "float", Default: 34.0, Description: "Displacement magnitude in pixels"},
		{Name: "sigma", Type: "float", Default: 4.0, Description: "Gaussian smoothing radius of the field"},
	},
	Build: func(params map[string]any, rng *rand.Rand) (Transform, error) {
		alpha, err := floatParam(params, "alpha", 34)
		if err != nil {
			return nil, err
		}
		sigma, err := floatParam(params, "sigma", 4)
		if err != nil {
			return nil, err
		}
		return &ElasticTransform{Alpha: alpha, Sigma: sigma, Rand: rng}, nil
	},
}
