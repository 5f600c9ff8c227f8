package sampler

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/codec/codectest"
	"github.com/gopq/gopq/internal/raw"
)

var testGeom = raw.Geometry{Width: 16, Height: 16}

// gopScript builds a GOP of length n: a keyframe followed by n-1 inter
// frames.
func gopScript(geom raw.Geometry, n int, luma byte) []codectest.ScriptFrame {
	frames := make([]codectest.ScriptFrame, 0, n)
	frames = append(frames, codectest.Keyframe(geom, luma))
	for i := 1; i < n; i++ {
		frames = append(frames, codectest.Inter(geom, luma))
	}
	return frames
}

func collect(t *testing.T, s *Sampler) []*GOPSample {
	t.Helper()
	var out []*GOPSample
	for {
		gs, err := s.Next()
		if stderrors.Is(err, codec.ErrEndOfStream) {
			return out
		}
		require.NoError(t, err)
		// Snapshot the counters; the sample buffer itself is reused.
		out = append(out, &GOPSample{
			FrameCount: gs.FrameCount,
			Sharpness:  gs.Sharpness,
			Geom:       gs.Geom,
			Sample:     nil,
		})
	}
}

func TestTwoGOPs(t *testing.T) {
	script := append(gopScript(testGeom, 400, 100), gopScript(testGeom, 100, 100)...)
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gops := collect(t, s)
	require.Len(t, gops, 2)
	assert.Equal(t, 400, gops[0].FrameCount)
	assert.Equal(t, 100, gops[1].FrameCount)
	assert.Equal(t, 500, gops[0].FrameCount+gops[1].FrameCount)
}

func TestRetentionCap(t *testing.T) {
	script := gopScript(testGeom, 400, 100)
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 400, gs.FrameCount, "all frames counted")
	assert.Equal(t, 50, gs.Sample.Frames(), "only the first N retained")

	_, err = s.Next()
	assert.ErrorIs(t, err, codec.ErrEndOfStream)
}

func TestMinGOPGuard(t *testing.T) {
	// Keyframes every 10 frames must not close GOPs below the minimum.
	var script []codectest.ScriptFrame
	for i := 0; i < 35; i++ {
		if i%10 == 0 {
			script = append(script, codectest.Keyframe(testGeom, 50))
		} else {
			script = append(script, codectest.Inter(testGeom, 50))
		}
	}
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 30, 50)

	gops := collect(t, s)
	require.Len(t, gops, 2)
	assert.Equal(t, 30, gops[0].FrameCount)
	assert.Equal(t, 5, gops[1].FrameCount)
}

func TestSingleFrameInput(t *testing.T) {
	demux, dec := codectest.NewScript(25, 0, gopScript(testGeom, 1, 80))
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, gs.FrameCount)

	_, err = s.Next()
	assert.ErrorIs(t, err, codec.ErrEndOfStream, "never a second record")
}

func TestGeometryChangeClosesGOP(t *testing.T) {
	small := raw.Geometry{Width: 16, Height: 16}
	large := raw.Geometry{Width: 32, Height: 32}
	script := append(gopScript(small, 40, 100), gopScript(large, 40, 100)...)
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gops := collect(t, s)
	require.Len(t, gops, 2)
	assert.Equal(t, small, gops[0].Geom)
	assert.Equal(t, large, gops[1].Geom)
	assert.Equal(t, 40, gops[0].FrameCount)
	assert.Equal(t, 40, gops[1].FrameCount)
}

func TestDecoderDelayDrainsAtEOF(t *testing.T) {
	// The decoder holds frames back until flushed, like a codec with
	// reorder delay.
	demux, dec := codectest.NewScript(25, 3, gopScript(testGeom, 20, 60))
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 20, gs.FrameCount, "flush must recover the held frames")
}

func TestFlatContentSharpness(t *testing.T) {
	demux, dec := codectest.NewScript(25, 0, gopScript(testGeom, 30, 128))
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.LessOrEqual(t, gs.Sharpness, 1e-9, "flat frames have no high-pass energy")
}

func TestTexturedContentSharpness(t *testing.T) {
	script := []codectest.ScriptFrame{codectest.Textured(testGeom, codec.PictureI, 7)}
	for i := 1; i < 30; i++ {
		script = append(script, codectest.Textured(testGeom, codec.PictureP, uint32(i)))
	}
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.Greater(t, gs.Sharpness, 0.5, "noise should have high per-pixel energy")
}

func TestCorruptFrameRetained(t *testing.T) {
	script := gopScript(testGeom, 10, 90)
	script[4].Corrupt = true
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 10, gs.FrameCount, "corrupt frames stay in the sample")
	assert.Equal(t, 10, gs.Sample.Frames())
}

func TestSamplePixelsMatchScript(t *testing.T) {
	script := gopScript(testGeom, 5, 77)
	demux, dec := codectest.NewScript(25, 0, script)
	s := New(demux, dec, 300, 50)

	gs, err := s.Next()
	require.NoError(t, err)
	for i := 0; i < gs.Sample.Frames(); i++ {
		f := gs.Sample.Frame(i)
		assert.EqualValues(t, 77, f.Y[0])
		assert.EqualValues(t, 128, f.Cb[0])
	}
}
