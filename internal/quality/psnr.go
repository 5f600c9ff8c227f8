package quality

import (
	"math"

	"github.com/gopq/gopq/internal/raw"
)

// identicalScore caps the score for bit-identical inputs, matching the
// VMAF-family score ceiling.
const identicalScore = 100.0

// PSNR is a deterministic luma PSNR scorer clamped onto the 0-100 metric
// scale. It stands in for the native perceptual backend in tests and on
// hosts without the metric library.
type PSNR struct{}

// NewPSNR creates a PSNR scorer.
func NewPSNR() *PSNR { return &PSNR{} }

// Score computes mean luma PSNR over [from, to), visiting every stride-th
// frame, clamped to [0, 100].
func (p *PSNR) Score(ref, dis *raw.Sample, from, to, stride int) (float64, error) {
	if err := checkInputs(ref, dis, from, to, stride); err != nil {
		return 0, err
	}

	it := NewIterator(ref, dis, from, to, stride)
	var sum float64
	var frames int
	for {
		pair, ok := it.Next()
		if !ok {
			break
		}
		sum += framePSNR(pair)
		frames++
	}
	return sum / float64(frames), nil
}

func framePSNR(pair FramePair) float64 {
	n := pair.Geom.LumaSize()
	var sse float64
	for i := 0; i < n; i++ {
		d := float64(pair.Ref[i]) - float64(pair.Dis[i])
		sse += d * d
	}
	if sse == 0 {
		return identicalScore
	}
	mse := sse / float64(n)
	psnr := 10 * math.Log10(255*255/mse)
	if psnr > identicalScore {
		psnr = identicalScore
	}
	if psnr < 0 {
		psnr = 0
	}
	return psnr
}
