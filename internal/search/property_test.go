package search

import (
	"context"
	"math"
	"testing"

	"pgregory.net/rapid"
)

// TestSearchInvariants drives the full per-GOP search over randomized
// rate-quality curves and checks the record invariants that must hold
// for any content.
func TestSearchInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := curves{
			base:          rapid.Float64Range(70, 120).Draw(t, "base"),
			slope:         rapid.Float64Range(0.05, 2.5).Draw(t, "slope"),
			bytes0:        rapid.Float64Range(1e5, 1e8).Draw(t, "bytes0"),
			amountPenalty: rapid.Float64Range(-3, 3).Draw(t, "amountPenalty"),
		}
		sharpness := rapid.Float64Range(0, 60).Draw(t, "sharpness")
		gops := rapid.IntRange(1, 3).Draw(t, "gops")

		r := newRig(c, gops, sharpness)
		table, err := r.driver().Run(context.Background())
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if table.Len() != gops {
			t.Fatalf("table length %d, want %d", table.Len(), gops)
		}

		for g := 0; g < table.Len(); g++ {
			rec := table.Record(g)

			onGrid := math.Abs(rec.Unsharpen*10-math.Round(rec.Unsharpen*10)) < 1e-9
			if rec.Unsharpen < 0 || rec.Unsharpen > 0.9 || !onGrid {
				t.Errorf("gop %d: unsharpen %g off the grid", g, rec.Unsharpen)
			}
			if rec.AQStrength < 1.0 {
				t.Errorf("gop %d: aq strength %g below 1", g, rec.AQStrength)
			}
			if rec.TargetQuality < 90.0 || rec.TargetQuality > 96.0 {
				t.Errorf("gop %d: target quality %g outside [90,96]", g, rec.TargetQuality)
			}
			if rec.CRF < 19 || rec.CRF > 41 {
				t.Errorf("gop %d: crf %d outside [19,41]", g, rec.CRF)
			}
			if rec.FrameCount < 1 {
				t.Errorf("gop %d: frame count %d", g, rec.FrameCount)
			}
		}
	})
}
