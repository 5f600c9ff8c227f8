package analysis

import (
	"math"
	"testing"

	"github.com/gopq/gopq/internal/raw"
)

func flatPlane(w, h int, v byte) []byte {
	p := make([]byte, w*h)
	for i := range p {
		p[i] = v
	}
	return p
}

func TestFrameSharpnessConstant(t *testing.T) {
	// A flat plane has zero high-pass energy everywhere.
	for _, v := range []byte{0, 128, 255} {
		if got := FrameSharpness(flatPlane(64, 48, v), 64, 48); got != 0 {
			t.Errorf("FrameSharpness(flat %d) = %d, want 0", v, got)
		}
	}
}

func TestFrameSharpnessEdge(t *testing.T) {
	// A vertical step edge produces nonzero response near the edge.
	w, h := 64, 48
	p := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			p[y*w+x] = 200
		}
	}
	if got := FrameSharpness(p, w, h); got == 0 {
		t.Error("step edge should produce nonzero sharpness")
	}
}

func TestFrameSharpnessTinyPlane(t *testing.T) {
	if got := FrameSharpness(flatPlane(4, 4, 10), 4, 4); got != 0 {
		t.Errorf("plane smaller than the kernel should score 0, got %d", got)
	}
}

func TestAccumulator(t *testing.T) {
	geom := raw.Geometry{Width: 32, Height: 32}
	acc := NewAccumulator(geom)

	if acc.Sharpness() != 0 {
		t.Error("empty accumulator should report 0")
	}

	acc.Add(flatPlane(32, 32, 100))
	acc.Add(flatPlane(32, 32, 100))
	if acc.Frames() != 2 {
		t.Errorf("Frames = %d, want 2", acc.Frames())
	}
	if acc.Sharpness() != 0 {
		t.Errorf("flat frames should keep sharpness 0, got %g", acc.Sharpness())
	}

	acc.Reset(geom)
	if acc.Frames() != 0 || acc.Sharpness() != 0 {
		t.Error("reset should clear the accumulator")
	}
}

func TestUnsharpenHint(t *testing.T) {
	tests := []struct {
		s    float64
		want float64
	}{
		// Below the clamp floor the mapping behaves as s=0.1.
		{0.0, 6 * 0.1},
		{0.1, 6 * 0.1},
		// At the ceiling the factor clamps to 1, leaving s itself.
		{0.8, 0.8},
		{2.5, 0.8},
	}

	for _, tt := range tests {
		if got := UnsharpenHint(tt.s); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("UnsharpenHint(%g) = %g, want %g", tt.s, got, tt.want)
		}
	}

	// Mid-range: factor = ((0.8-0.4)/0.7)^2*6, times s.
	s := 0.4
	factor := math.Pow((0.8-s)/0.7, 2) * 6
	if got := UnsharpenHint(s); math.Abs(got-factor*s) > 1e-9 {
		t.Errorf("UnsharpenHint(%g) = %g, want %g", s, got, factor*s)
	}
}

func TestAQStrength(t *testing.T) {
	tests := []struct {
		s    float64
		want float64
	}{
		{0.1, 1.5},
		{0.0, 1.5},
		{0.8, 1.0},
		{0.45, 1.0},
	}

	for _, tt := range tests {
		if got := AQStrength(tt.s); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AQStrength(%g) = %g, want %g", tt.s, got, tt.want)
		}
	}

	// Never below 1.0 anywhere on the clamped domain.
	for s := 0.0; s <= 1.0; s += 0.05 {
		if AQStrength(s) < 1.0 {
			t.Errorf("AQStrength(%g) below 1.0", s)
		}
	}
}

func TestMappingsArePure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if UnsharpenHint(0.3) != UnsharpenHint(0.3) || AQStrength(0.3) != AQStrength(0.3) {
			t.Fatal("mappings must be pure functions of s")
		}
	}
}
