// Quality metrics comparing an augmented variant with its source raster
package metrics

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/samber/lo"
	"gocv.io/x/gocv"
)

// Metric compares two grayscale rasters of the same size
type Metric interface {
	Calculate(original, processed gocv.Mat) (float64, error)
	Name() string
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator returns an evaluator with MSE, PSNR and SSIM registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.Register(&MSE{})
	e.Register(&PSNR{})
	e.Register(&SSIM{})
	return e
}

func (e *Evaluator) Register(metric Metric) {
	e.metrics[metric.Name()] = metric
}

// Names returns the registered metric names in sorted order.
func (e *Evaluator) Names() []string {
	names := lo.Keys(e.metrics)
	sort.Strings(names)
	return names
}

func (e *Evaluator) Calculate(name string, original, processed gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(original, processed)
}

// CalculateAll calculates every registered metric. Metrics that fail are
// left out of the result.
func (e *Evaluator) CalculateAll(original, processed gocv.Mat) map[string]float64 {
	results := make(map[string]float64, len(e.metrics))
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(original, processed); err == nil {
			results[name] = value
		}
	}
	return results
}

func checkPair(original, processed gocv.Mat) error {
	if original.Empty() || processed.Empty() {
		return fmt.Errorf("empty images")
	}
	if original.Rows() != processed.Rows() || original.Cols() != processed.Cols() {
		return fmt.Errorf("image dimensions mismatch: %dx%d vs %dx%d",
			original.Cols(), original.Rows(), processed.Cols(), processed.Rows())
	}
	if original.Type() != gocv.MatTypeCV8UC1 || processed.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("metrics require 8-bit single channel images")
	}
	return nil
}

// MSE is the mean squared error in gray levels
type MSE struct{}

func (m *MSE) Name() string {
	return "mse"
}

func (m *MSE) Calculate(original, processed gocv.Mat) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	return meanSquaredError(original, processed), nil
}

func meanSquaredError(original, processed gocv.Mat) float64 {
	sumSquaredDiff := 0.0
	for y := 0; y < original.Rows(); y++ {
		for x := 0; x < original.Cols(); x++ {
			diff := float64(original.GetUCharAt(y, x)) - float64(processed.GetUCharAt(y, x))
			sumSquaredDiff += diff * diff
		}
	}
	return sumSquaredDiff / float64(original.Rows()*original.Cols())
}

// PSNR is the peak signal-to-noise ratio in dB. Identical images give +Inf.
type PSNR struct{}

func (p *PSNR) Name() string {
	return "psnr"
}

func (p *PSNR) Calculate(original, processed gocv.Mat) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}

	mse := meanSquaredError(original, processed)
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 20 * math.Log10(255.0/math.Sqrt(mse)), nil
}

// SSIM is the mean structural similarity index with an 11x11 Gaussian window
type SSIM struct{}

func (s *SSIM) Name() string {
	return "ssim"
}

func (s *SSIM) Calculate(original, processed gocv.Mat) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}

	const (
		c1 = 6.5025  // (0.01 * 255)^2
		c2 = 58.5225 // (0.03 * 255)^2
	)

	f1 := gocv.NewMat()
	defer f1.Close()
	original.ConvertTo(&f1, gocv.MatTypeCV32F)

	f2 := gocv.NewMat()
	defer f2.Close()
	processed.ConvertTo(&f2, gocv.MatTypeCV32F)

	window := func(src gocv.Mat) gocv.Mat {
		dst := gocv.NewMat()
		gocv.GaussianBlur(src, &dst, image.Pt(11, 11), 1.5, 1.5, gocv.BorderDefault)
		return dst
	}
	product := func(a, b gocv.Mat) gocv.Mat {
		dst := gocv.NewMat()
		gocv.Multiply(a, b, &dst)
		return dst
	}

	mu1 := window(f1)
	defer mu1.Close()
	mu2 := window(f2)
	defer mu2.Close()

	f1Sq := product(f1, f1)
	defer f1Sq.Close()
	f2Sq := product(f2, f2)
	defer f2Sq.Close()
	f1f2 := product(f1, f2)
	defer f1f2.Close()

	e11 := window(f1Sq)
	defer e11.Close()
	e22 := window(f2Sq)
	defer e22.Close()
	e12 := window(f1f2)
	defer e12.Close()

	total := 0.0
	for y := 0; y < f1.Rows(); y++ {
		for x := 0; x < f1.Cols(); x++ {
			m1 := float64(mu1.GetFloatAt(y, x))
			m2 := float64(mu2.GetFloatAt(y, x))
			sigma1 := float64(e11.GetFloatAt(y, x)) - m1*m1
			sigma2 := float64(e22.GetFloatAt(y, x)) - m2*m2
			sigma12 := float64(e12.GetFloatAt(y, x)) - m1*m2

			num := (2*m1*m2 + c1) * (2*sigma12 + c2)
			den := (m1*m1 + m2*m2 + c1) * (sigma1 + sigma2 + c2)
			total += num / den
		}
	}

	return total / float64(f1.Rows()*f1.Cols()), nil
}
