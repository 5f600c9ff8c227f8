// Package quality defines the perceptual-quality scoring contract and a
// deterministic PSNR-family backend.
package quality

import (
	"fmt"

	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/raw"
)

// Scorer computes a perceptual-quality score in [0, 100] between two raw
// samples over the half-open frame range [from, to), reading luma only
// and visiting every stride-th frame.
type Scorer interface {
	Score(ref, dis *raw.Sample, from, to, stride int) (float64, error)
}

// TailRange returns the half-open range covering the last n frames of a
// sample holding total frames.
func TailRange(total, n int) (from, to int) {
	from = total - n
	if from < 0 {
		from = 0
	}
	return from, total
}

// checkInputs validates the common scorer preconditions.
func checkInputs(ref, dis *raw.Sample, from, to, stride int) error {
	if ref.Geometry() != dis.Geometry() {
		return errors.NewScorerError(
			fmt.Sprintf("geometry mismatch %s vs %s", ref.Geometry(), dis.Geometry()), nil)
	}
	if stride < 1 {
		return errors.NewScorerError(fmt.Sprintf("stride %d below 1", stride), nil)
	}
	if from < 0 || to > ref.Frames() || to > dis.Frames() || from >= to {
		return errors.NewScorerError(
			fmt.Sprintf("frame range [%d,%d) outside %d/%d", from, to, ref.Frames(), dis.Frames()), nil)
	}
	return nil
}

// FramePair is one (reference, distorted) luma pair handed to a native
// metric backend.
type FramePair struct {
	Ref, Dis []byte
	Geom     raw.Geometry
}

// Iterator yields successive frame pairs over a scoring range. Native
// backends drive it through their pull callback; a false second return
// signals the end of the range.
type Iterator struct {
	ref, dis *raw.Sample
	next     int
	to       int
	stride   int
}

// NewIterator creates a frame-pair iterator over [from, to) with the
// given stride. Inputs must already be validated.
func NewIterator(ref, dis *raw.Sample, from, to, stride int) *Iterator {
	return &Iterator{ref: ref, dis: dis, next: from, to: to, stride: stride}
}

// Next returns the following pair, or false when the range is exhausted.
func (it *Iterator) Next() (FramePair, bool) {
	if it.next >= it.to {
		return FramePair{}, false
	}
	r := it.ref.Frame(it.next)
	d := it.dis.Frame(it.next)
	it.next += it.stride
	return FramePair{Ref: r.Y, Dis: d.Y, Geom: r.Geom}, true
}
