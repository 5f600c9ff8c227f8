// Package unsharp applies a 5x5 luma unsharp mask to GOP samples, the
// pre-filter step ahead of the stage-2 sweep.
package unsharp

import (
	"fmt"
	"math"

	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/raw"
)

const (
	steps     = 2
	scaleBits = 8
	halfScale = 1 << (scaleBits - 1)
)

var kernel = [2*steps + 1]int32{1, 4, 6, 4, 1}

// Amounts is the grid of selectable mask amounts.
var Amounts = [10]float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// Quantize snaps an amount onto the selectable grid, clamping to [0, 0.9].
func Quantize(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	if amount >= 0.9 {
		return 0.9
	}
	return math.Round(amount*10) / 10
}

// Service is the stateless unsharpen filter.
type Service struct{}

// New creates an unsharpen service.
func New() *Service { return &Service{} }

// Apply filters src into dst with the given luma amount. Chroma planes
// pass through unchanged. dst must have the capacity of src; its geometry
// and frame count are taken from src. amount must sit on the grid.
func (s *Service) Apply(dst, src *raw.Sample, amount float64) error {
	if Quantize(amount) != amount {
		return errors.NewFilterError(
			fmt.Sprintf("amount %g is not on the 0.1 grid", amount), nil)
	}
	if dst.Cap() < src.Frames() {
		return errors.NewFilterError(
			fmt.Sprintf("output capacity %d below %d frames", dst.Cap(), src.Frames()), nil)
	}

	dst.CopyFrom(src)
	if amount == 0 {
		return nil
	}

	fixed := int32(amount * 65536)
	for i := 0; i < src.Frames(); i++ {
		in := src.Frame(i)
		out := dst.Frame(i)
		maskLuma(out.Y, in.Y, in.Geom.Width, in.Geom.Height, fixed)
	}
	return nil
}

// maskLuma writes src + highpass(src)*amount into dst over the plane
// interior. Pixels within two rows or columns of an edge keep the source
// value.
func maskLuma(dst, src []byte, width, height int, amount int32) {
	if width <= 2*steps || height <= 2*steps {
		return
	}

	rows := make([][]int32, 2*steps+1)
	for i := range rows {
		rows[i] = make([]int32, width)
	}

	hpass := func(acc []int32, row []byte) {
		for x := steps; x < width-steps; x++ {
			var sum int32
			for k := -steps; k <= steps; k++ {
				sum += kernel[k+steps] * int32(row[x+k])
			}
			acc[x] = sum
		}
	}

	for i := 0; i < 2*steps+1; i++ {
		hpass(rows[i], src[i*width:(i+1)*width])
	}

	for cy := steps; cy < height-steps; cy++ {
		for cx := steps; cx < width-steps; cx++ {
			var sum int32
			for k := -steps; k <= steps; k++ {
				sum += kernel[k+steps] * rows[(cy+k)%(2*steps+1)][cx]
			}
			smoothed := (sum + halfScale) >> scaleBits
			p := int32(src[cy*width+cx])
			v := p + ((p-smoothed)*amount)>>16
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			dst[cy*width+cx] = byte(v)
		}

		if cy+steps+1 < height {
			next := cy + steps + 1
			hpass(rows[next%(2*steps+1)], src[next*width:(next+1)*width])
		}
	}
}
