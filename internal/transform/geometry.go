package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"strings"

	"gocv.io/x/gocv"
)

// ScaleImage zooms into the center of the image while keeping its size.
// ZoomFactor must be greater than 1.
type ScaleImage struct {
	ZoomFactor float64
}

func (s *ScaleImage) Name() string {
	return "scale_image"
}

func (s *ScaleImage) Validate() error {
	if !(s.ZoomFactor > 1) || math.IsInf(s.ZoomFactor, 0) {
		return fmt.Errorf("%w: zoom_factor must be a finite value > 1, got %v", ErrInvalidParameter, s.ZoomFactor)
	}
	return nil
}

func (s *ScaleImage) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	if err := s.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	height, width := src.Rows(), src.Cols()
	newHeight := int(float64(height) / s.ZoomFactor)
	newWidth := int(float64(width) / s.ZoomFactor)
	if newHeight < 1 || newWidth < 1 {
		return gocv.NewMat(), fmt.Errorf("%w: zoom_factor %v leaves no pixels of a %dx%d image",
			ErrInvalidParameter, s.ZoomFactor, width, height)
	}

	startY := (height - newHeight) / 2
	startX := (width - newWidth) / 2
	cropped := src.Region(image.Rect(startX, startY, startX+newWidth, startY+newHeight))
	defer cropped.Close()

	output := gocv.NewMat()
	gocv.Resize(cropped, &output, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

	return output, nil
}

// RotateImage rotates about the image center, keeping the original size.
// Pixels sampled from outside the source are reflected across the border.
type RotateImage struct {
	Angle float64
}

func (r *RotateImage) Name() string {
	return "rotate_image"
}

func (r *RotateImage) Validate() error {
	if math.IsNaN(r.Angle) || math.IsInf(r.Angle, 0) {
		return fmt.Errorf("%w: angle must be finite, got %v", ErrInvalidParameter, r.Angle)
	}
	return nil
}

func (r *RotateImage) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	if err := r.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	height, width := src.Rows(), src.Cols()
	center := image.Pt(width/2, height/2)

	rotMatrix := gocv.GetRotationMatrix2D(center, r.Angle, 1.0)
	defer rotMatrix.Close()

	output := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &output, rotMatrix, image.Pt(width, height),
		gocv.InterpolationLinear, gocv.BorderReflect, color.RGBA{})

	return output, nil
}

// FlipMode selects the mirror axis of FlipImage.
type FlipMode string

const (
	FlipVertical   FlipMode = "vertical"
	FlipHorizontal FlipMode = "horizontal"
	FlipBoth       FlipMode = "both"
)

// flipCode maps a mode onto the OpenCV flip code
func (m FlipMode) flipCode() (int, bool) {
	switch m {
	case FlipVertical:
		return 0, true
	case FlipHorizontal:
		return 1, true
	case FlipBoth:
		return -1, true
	default:
		return 0, false
	}
}

// ParseFlipMode accepts a mode name or one of the OpenCV flip codes 0, 1, -1.
func ParseFlipMode(val any) (FlipMode, error) {
	switch v := val.(type) {
	case FlipMode:
		return v, nil
	case string:
		return FlipMode(strings.ToLower(strings.TrimSpace(v))), nil
	case int, int64, float64:
		code, err := intParam(map[string]any{"mode": v}, "mode", 0)
		if err != nil {
			return "", err
		}
		switch code {
		case 0:
			return FlipVertical, nil
		case 1:
			return FlipHorizontal, nil
		case -1:
			return FlipBoth, nil
		}
		return "", fmt.Errorf("%w: unknown flip code %d", ErrInvalidParameter, code)
	default:
		return "", fmt.Errorf("%w: mode must be a string or flip code, got %T", ErrInvalidParameter, val)
	}
}

// FlipImage mirrors the raster. Vertical reverses row order, horizontal
// reverses column order, both reverses both.
type FlipImage struct {
	Mode FlipMode
}

func (f *FlipImage) Name() string {
	return "flip_image"
}

func (f *FlipImage) Validate() error {
	if _, ok := f.Mode.flipCode(); !ok {
		return fmt.Errorf("%w: mode must be one of vertical, horizontal, both, got %q", ErrInvalidParameter, f.Mode)
	}
	return nil
}

func (f *FlipImage) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	code, ok := f.Mode.flipCode()
	if !ok {
		return gocv.NewMat(), f.Validate()
	}

	output := gocv.NewMat()
	gocv.Flip(src, &output, code)

	return output, nil
}

var scaleImageFactory = Factory{
	Description: "Centered zoom-in that keeps the original size",
	Parameters: []ParameterInfo{
		{Name: "zoom_factor", Type: "float", Default: 1.2, Description: "Zoom factor, must be > 1"},
	},
	Build: func(params map[string]any, _ *rand.Rand) (Transform, error) {
		zoom, err := floatParam(params, "zoom_factor", 1.2)
		if err != nil {
			return nil, err
		}
		return &ScaleImage{ZoomFactor: zoom}, nil
	},
}

var rotateImageFactory = Factory{
	Description: "Rotation about the center with reflected borders",
	Parameters: []ParameterInfo{
		{Name: "angle", Type: "float", Default: 0.0, Description: "Rotation angle in degrees (counter-clockwise)"},
	},
	Build: func(params map[string]any, _ *rand.Rand) (Transform, error) {
		angle, err := floatParam(params, "angle", 0)
		if err != nil {
			return nil, err
		}
		return &RotateImage{Angle: angle}, nil
	},
}

var flipImageFactory = Factory{
	Description: "Mirror along the vertical, horizontal or both axes",
	Parameters: []ParameterInfo{
		{
			Name:        "mode",
			Type:        "enum",
			Default:     string(FlipHorizontal),
			Description: "Flip axis (OpenCV codes 0, 1, -1 are also accepted)",
			Options:     []string{string(FlipVertical), string(FlipHorizontal), string(FlipBoth)},
		},
	},
	Build: func(params map[string]any, _ *rand.Rand) (Transform, error) {
		raw, ok := params["mode"]
		if !ok {
			return &FlipImage{Mode: FlipHorizontal}, nil
		}
		mode, err := ParseFlipMode(raw)
		if err != nil {
			return nil, err
		}
		return &FlipImage{Mode: mode}, nil
	},
}
