package transform

import (
	"image"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// TimeShift circularly shifts the columns of a scan. Positive shifts move
// content right, negative shifts move it left. Shifts wrap modulo the width.
type TimeShift struct {
	Shift int
}

func (t *TimeShift) Name() string {
	return "time_shift"
}

func (t *TimeShift) Validate() error {
	return nil
}

func (t *TimeShift) Apply(src gocv.Mat) (gocv.Mat, error) {
	if err := validateInput(src); err != nil {
		return gocv.NewMat(), err
	}
	return roll(src, 0, t.Shift), nil
}

// roll circularly shifts rows by dy and columns by dx into a new Mat of the
// same size and type. Works for any Mat type, including complex spectra.
func roll(src gocv.Mat, dy, dx int) gocv.Mat {
	rows, cols := src.Rows(), src.Cols()
	dy = wrap(dy, rows)
	dx = wrap(dx, cols)

	output := gocv.NewMatWithSize(rows, cols, src.Type())
	if dy == 0 && dx == 0 {
		src.CopyTo(&output)
		return output
	}

	for _, m := range rollBlocks(rows, cols, dy, dx) {
		srcBlock := src.Region(m.from)
		dstBlock := output.Region(m.to)
		srcBlock.CopyTo(&dstBlock)
		srcBlock.Close()
		dstBlock.Close()
	}

	return output
}

// blockMove copies the from rectangle of the source to the to rectangle
// of the output.
type blockMove struct {
	from, to image.Rectangle
}

// rollBlocks splits a rows x cols roll by (dy, dx) into at most four block
// copies. Each source block lands at its origin plus the shift, modulo the
// size, and the destinations tile the output exactly once.
func rollBlocks(rows, cols, dy, dx int) []blockMove {
	dy = wrap(dy, rows)
	dx = wrap(dx, cols)

	ySplits := [][2]int{{0, rows - dy}, {rows - dy, rows}}
	xSplits := [][2]int{{0, cols - dx}, {cols - dx, cols}}

	var moves []blockMove
	for _, ys := range ySplits {
		if ys[0] == ys[1] {
			continue
		}
		for _, xs := range xSplits {
			if xs[0] == xs[1] {
				continue
			}
			from := image.Rect(xs[0], ys[0], xs[1], ys[1])
			origin := image.Pt(wrap(from.Min.X+dx, cols), wrap(from.Min.Y+dy, rows))
			moves = append(moves, blockMove{
				from: from,
				to:   image.Rectangle{Min: origin, Max: origin.Add(from.Size())},
			})
		}
	}
	return moves
}

func wrap(v, n int) int {
	if n == 0 {
		return 0
	}
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

var timeShiftFactory = Factory{
	Description: "Circular shift of the time axis (columns)",
	Parameters: []ParameterInfo{
		{Name: "shift", Type: "int", Default: 0, Description: "Columns to shift right (negative shifts left)"},
	},
	Build: func(params map[string]any, _ *rand.Rand) (Transform, error) {
		shift, err := intParam(params, "shift", 0)
		if err != nil {
			return nil, err
		}
		return &TimeShift{Shift: shift}, nil
	},
}
