package transform

import (
	"fmt"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// SpectralShift rolls the centered 2D spectrum of the raster along the
// horizontal frequency axis and reconstructs the magnitude of the inverse
// transform. The reconstruction is lossy: sign and phase of the complex
// result are discarded and values are clipped and truncated to 8 bits.
type SpectralShift struct {
	Shift int
}

func (s *SpectralShift) Name() string {
	return "spectral_shift"
}

func (s *SpectralShift) Validate() error {
	return nil
}

func (s *SpectralShift) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}

	rows, cols := src.Rows(), src.Cols()

	samples := gocv.NewMat()
	defer samples.Close()
	src.ConvertTo(&samples, gocv.MatTypeCV32F)

	spectrum := gocv.NewMat()
	defer spectrum.Close()
	gocv.DFT(samples, &spectrum, gocv.DftComplexOutput)
	if spectrum.Channels() != 2 {
		return gocv.NewMat(), fmt.Errorf("unexpected spectrum layout: %d channels", spectrum.Channels())
	}

	centered := fftShift(spectrum)
	defer centered.Close()

	rolled := roll(centered, 0, s.Shift)
	defer rolled.Close()

	uncentered := ifftShift(rolled)
	defer uncentered.Close()

	inverse := gocv.NewMat()
	defer inverse.Close()
	gocv.DFT(uncentered, &inverse, gocv.DftInverse|gocv.DftScale)

	planes := gocv.Split(inverse)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.Magnitude(planes[0], planes[1], &magnitude)

	output := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			output.SetUCharAt(y, x, clipToUint8(float64(magnitude.GetFloatAt(y, x))))
		}
	}

	return output, nil
}

// fftShift moves the zero-frequency component to the center
func fftShift(spectrum gocv.Mat) gocv.Mat {
	return roll(spectrum, spectrum.Rows()/2, spectrum.Cols()/2)
}

// ifftShift undoes fftShift, including for odd sizes
func ifftShift(spectrum gocv.Mat) gocv.Mat {
	return roll(spectrum, -(spectrum.Rows() / 2), -(spectrum.Cols() / 2))
}

var spectralShiftFactory = Factory{
	Description: "Circular shift of the centered spectrum along the horizontal frequency axis",
	Parameters: []ParameterInfo{
		{Name: "shift", Type: "int", Default: 0, Description: "Frequency bins to roll"},
	},
	Build: func(params map[string]any, _ *rand.Rand) (Transform, error) {
		shift, err := intParam(params, "shift", 0)
		if err != nil {
			return nil, err
		}
		return &SpectralShift{Shift: shift}, nil
	},
}
