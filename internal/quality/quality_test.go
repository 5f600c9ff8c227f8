package quality

import (
	"testing"

	coreerrors "github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/raw"
)

func fillSample(t *testing.T, geom raw.Geometry, frames int, luma func(frame, i int) byte) *raw.Sample {
	t.Helper()
	s := raw.NewSample(geom, frames)
	for i := 0; i < frames; i++ {
		f, ok := s.AppendBlank()
		if !ok {
			t.Fatal("sample capacity exhausted")
		}
		for j := range f.Y {
			f.Y[j] = luma(i, j)
		}
	}
	return s
}

func TestPSNRIdentical(t *testing.T) {
	geom := raw.Geometry{Width: 16, Height: 16}
	s := fillSample(t, geom, 5, func(frame, i int) byte { return byte(i) })

	score, err := NewPSNR().Score(s, s, 0, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if score != 100 {
		t.Errorf("identical inputs should score 100, got %g", score)
	}
}

func TestPSNRDegradesWithDistortion(t *testing.T) {
	geom := raw.Geometry{Width: 16, Height: 16}
	ref := fillSample(t, geom, 5, func(frame, i int) byte { return 100 })
	near := fillSample(t, geom, 5, func(frame, i int) byte { return 101 })
	far := fillSample(t, geom, 5, func(frame, i int) byte { return 120 })

	scorer := NewPSNR()
	qNear, err := scorer.Score(ref, near, 0, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	qFar, err := scorer.Score(ref, far, 0, 5, 1)
	if err != nil {
		t.Fatal(err)
	}

	if qNear <= qFar {
		t.Errorf("near %g should beat far %g", qNear, qFar)
	}
	if qNear <= 0 || qNear > 100 || qFar < 0 {
		t.Errorf("scores outside metric scale: %g, %g", qNear, qFar)
	}
}

func TestPSNRSubrange(t *testing.T) {
	geom := raw.Geometry{Width: 8, Height: 8}
	ref := fillSample(t, geom, 10, func(frame, i int) byte { return 50 })
	// Heavy distortion only in the first half.
	dis := fillSample(t, geom, 10, func(frame, i int) byte {
		if frame < 5 {
			return 200
		}
		return 50
	})

	scorer := NewPSNR()
	tail, err := scorer.Score(ref, dis, 5, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tail != 100 {
		t.Errorf("clean tail should score 100, got %g", tail)
	}

	head, err := scorer.Score(ref, dis, 0, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if head >= 100 {
		t.Errorf("distorted head should score below 100, got %g", head)
	}
}

func TestScoreInputValidation(t *testing.T) {
	geom := raw.Geometry{Width: 8, Height: 8}
	ref := fillSample(t, geom, 3, func(frame, i int) byte { return 0 })
	other := fillSample(t, raw.Geometry{Width: 16, Height: 16}, 3, func(frame, i int) byte { return 0 })

	scorer := NewPSNR()

	if _, err := scorer.Score(ref, other, 0, 3, 1); !coreerrors.IsKind(err, coreerrors.KindScorer) {
		t.Error("geometry mismatch should be a scorer error")
	}
	if _, err := scorer.Score(ref, ref, 0, 5, 1); !coreerrors.IsKind(err, coreerrors.KindScorer) {
		t.Error("out-of-range frames should be a scorer error")
	}
	if _, err := scorer.Score(ref, ref, 2, 2, 1); !coreerrors.IsKind(err, coreerrors.KindScorer) {
		t.Error("empty range should be a scorer error")
	}
	if _, err := scorer.Score(ref, ref, 0, 3, 0); !coreerrors.IsKind(err, coreerrors.KindScorer) {
		t.Error("zero stride should be a scorer error")
	}
}

func TestTailRange(t *testing.T) {
	tests := []struct {
		total, n, from, to int
	}{
		{50, 5, 45, 50},
		{10, 5, 5, 10},
		{3, 5, 0, 3},
		{1, 5, 0, 1},
	}

	for _, tt := range tests {
		from, to := TailRange(tt.total, tt.n)
		if from != tt.from || to != tt.to {
			t.Errorf("TailRange(%d, %d) = [%d,%d), want [%d,%d)",
				tt.total, tt.n, from, to, tt.from, tt.to)
		}
	}
}

func TestIteratorStride(t *testing.T) {
	geom := raw.Geometry{Width: 8, Height: 8}
	s := fillSample(t, geom, 10, func(frame, i int) byte { return byte(frame) })

	it := NewIterator(s, s, 2, 9, 3)
	var frames []byte
	for {
		pair, ok := it.Next()
		if !ok {
			break
		}
		frames = append(frames, pair.Ref[0])
	}

	want := []byte{2, 5, 8}
	if len(frames) != len(want) {
		t.Fatalf("iterator yielded %d pairs, want %d", len(frames), len(want))
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("pair %d from frame %d, want %d", i, frames[i], want[i])
		}
	}
}
