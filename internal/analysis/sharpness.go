// Package analysis computes the per-GOP content sharpness statistic and
// its derived pre-filter controls.
package analysis

import "github.com/gopq/gopq/internal/raw"

// The high-pass response uses the same separable 5x5 binomial smoothing
// kernel as the unsharp mask, so the statistic predicts how strongly the
// mask will react to the content.
const (
	steps     = 2
	scaleBits = 8
	halfScale = 1 << (scaleBits - 1)
)

// kernel holds the per-axis binomial weights, total 1<<(scaleBits/2) each.
var kernel = [2*steps + 1]int32{1, 4, 6, 4, 1}

// FrameSharpness sums the absolute high-pass response over the interior
// of one luma plane. Border pixels within two rows or columns of an edge
// are skipped.
func FrameSharpness(y []byte, width, height int) int64 {
	if width <= 2*steps || height <= 2*steps {
		return 0
	}

	// Separable smoothing: horizontal pass into row sums, then vertical.
	rows := make([][]int32, 2*steps+1)
	for i := range rows {
		rows[i] = make([]int32, width)
	}

	hpass := func(dst []int32, row []byte) {
		for x := steps; x < width-steps; x++ {
			var acc int32
			for k := -steps; k <= steps; k++ {
				acc += kernel[k+steps] * int32(row[x+k])
			}
			dst[x] = acc
		}
	}

	for i := 0; i < 2*steps+1; i++ {
		hpass(rows[i], y[i*width:(i+1)*width])
	}

	var total int64
	for cy := steps; cy < height-steps; cy++ {
		for cx := steps; cx < width-steps; cx++ {
			var acc int32
			for k := -steps; k <= steps; k++ {
				acc += kernel[k+steps] * rows[(cy+k)%(2*steps+1)][cx]
			}
			smoothed := (acc + halfScale) >> scaleBits
			res := int64(int32(y[cy*width+cx]) - smoothed)
			if res < 0 {
				res = -res
			}
			total += res
		}

		// Slide the row window down one line.
		if cy+steps+1 < height {
			next := cy + steps + 1
			hpass(rows[next%(2*steps+1)], y[next*width:(next+1)*width])
		}
	}

	return total
}

// Accumulator aggregates frame sharpness across one GOP sample.
type Accumulator struct {
	total  int64
	frames int
	geom   raw.Geometry
}

// NewAccumulator creates an accumulator for the given geometry.
func NewAccumulator(geom raw.Geometry) *Accumulator {
	return &Accumulator{geom: geom}
}

// Add accumulates the sharpness of one decoded luma plane.
func (a *Accumulator) Add(y []byte) {
	a.total += FrameSharpness(y, a.geom.Width, a.geom.Height)
	a.frames++
}

// Reset clears the accumulator for the next GOP, optionally with new
// geometry.
func (a *Accumulator) Reset(geom raw.Geometry) {
	a.total = 0
	a.frames = 0
	a.geom = geom
}

// Frames returns how many frames have been accumulated.
func (a *Accumulator) Frames() int { return a.frames }

// Sharpness returns the mean high-pass energy per pixel.
func (a *Accumulator) Sharpness() float64 {
	if a.frames == 0 {
		return 0
	}
	return float64(a.total) / float64(a.frames) /
		float64(a.geom.Width) / float64(a.geom.Height)
}

// clampSharpness bounds the statistic to the calibrated control range.
func clampSharpness(s float64) float64 {
	if s <= 0.1 {
		return 0.1
	}
	if s >= 0.8 {
		return 0.8
	}
	return s
}

// UnsharpenHint maps the sharpness statistic to the raw unsharpen amount
// that seeds the stage-0 grid search. Pure in s.
func UnsharpenHint(s float64) float64 {
	s = clampSharpness(s)
	factor := ((0.8 - s) / 0.7) * ((0.8 - s) / 0.7) * 6
	if factor <= 1.0 {
		factor = 1.0
	}
	return factor * s
}

// AQStrength maps the sharpness statistic to the adaptive-quantization
// strength applied by the final pass. Pure in s, always >= 1.0.
func AQStrength(s float64) float64 {
	s = clampSharpness(s)
	aq := 0.5 + (0.8-s)/0.7
	if aq < 1.0 {
		aq = 1.0
	}
	return aq
}
