// Package sampler partitions a decoded video stream into per-GOP samples
// for the search driver.
package sampler

import (
	"errors"

	"github.com/gopq/gopq/internal/analysis"
	"github.com/gopq/gopq/internal/codec"
	coreerrors "github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/logging"
	"github.com/gopq/gopq/internal/raw"
)

// GOPSample is one GOP's retained pixels plus its whole-GOP statistics.
type GOPSample struct {
	// Sample holds the first up-to-N decoded frames.
	Sample *raw.Sample

	// FrameCount is the total decoded frame count of the GOP, counted
	// through the next keyframe even when pixels were discarded.
	FrameCount int

	// Sharpness is the mean high-pass energy per pixel across the GOP.
	Sharpness float64

	// Geom is the GOP geometry; a geometry change closes a GOP, so it is
	// constant within one sample.
	Geom raw.Geometry
}

// Sampler pulls packets from a demuxer through a decoder and closes GOP
// samples on keyframe boundaries.
type Sampler struct {
	demux codec.Demuxer
	dec   codec.Decoder

	minGOP       int
	sampleFrames int

	sample *raw.Sample
	acc    *analysis.Accumulator
	count  int
	open   bool

	pending     *raw.Sample
	havePending bool

	pendPkt *codec.Packet
	eof     bool
	flushed bool
	done    bool
}

// New creates a sampler over the given demuxer and decoder.
func New(demux codec.Demuxer, dec codec.Decoder, minGOP, sampleFrames int) *Sampler {
	return &Sampler{
		demux:        demux,
		dec:          dec,
		minGOP:       minGOP,
		sampleFrames: sampleFrames,
	}
}

// FrameRate returns the input stream frame rate.
func (s *Sampler) FrameRate() float64 { return s.demux.FrameRate() }

// Next returns the next GOP sample. The returned sample is owned by the
// sampler and valid until the following call. Returns
// codec.ErrEndOfStream after the last GOP.
func (s *Sampler) Next() (*GOPSample, error) {
	if s.done {
		return nil, codec.ErrEndOfStream
	}

	s.beginGOP()

	for {
		if s.flushed {
			return s.finish()
		}

		if s.pendPkt == nil && !s.eof {
			pkt, err := s.demux.ReadPacket()
			if errors.Is(err, codec.ErrEndOfStream) {
				s.eof = true
			} else if err != nil {
				return nil, coreerrors.NewDemuxError("read packet", err)
			} else {
				s.pendPkt = &pkt
			}
		}

		// Feed the decoder: the pending packet, or the flush once the
		// demuxer is exhausted. ErrAgain means drain first and retry.
		var err error
		if s.pendPkt != nil {
			err = s.dec.SendPacket(*s.pendPkt)
			if err == nil {
				s.pendPkt = nil
			}
		} else {
			err = s.dec.SendPacket(codec.Packet{})
			if err == nil {
				s.flushed = true
			}
		}
		if err != nil && !errors.Is(err, codec.ErrAgain) {
			return nil, coreerrors.NewDecodeError("send packet", err)
		}

		closed, err := s.drain()
		if err != nil {
			return nil, err
		}
		if closed != nil {
			return closed, nil
		}
	}
}

// drain receives decoded frames until the decoder wants more input.
// Returns a closed GOP sample as soon as one completes.
func (s *Sampler) drain() (*GOPSample, error) {
	for {
		f, err := s.dec.ReceiveFrame()
		if errors.Is(err, codec.ErrAgain) {
			return nil, nil
		}
		if errors.Is(err, codec.ErrEndOfStream) {
			s.flushed = true
			return nil, nil
		}
		if err != nil {
			return nil, coreerrors.NewDecodeError("receive frame", err)
		}

		if closed := s.handleFrame(f); closed != nil {
			return closed, nil
		}
	}
}

// handleFrame folds one decoded frame into the current GOP, closing it
// when a boundary is reached.
func (s *Sampler) handleFrame(f codec.DecodedFrame) *GOPSample {
	if f.Corrupt {
		logging.Warn("decoded frame flagged corrupt, keeping it",
			"frame", s.count, "geometry", f.Geom.String())
	}

	if !s.open {
		s.startGOP(f.Geom)
	} else if f.Geom != s.sample.Geometry() {
		// Geometry changed mid-stream; the current GOP ends here and the
		// new frame seeds the next one.
		closed := s.closeGOP()
		s.stash(f)
		return closed
	} else if f.Type.IsKeyframe() && s.count >= s.minGOP {
		closed := s.closeGOP()
		s.stash(f)
		return closed
	}

	s.acc.Add(lumaView(f))
	s.sample.Append(f.Y, f.Cb, f.Cr, f.YStride, f.ChromaStride)
	s.count++
	return nil
}

// beginGOP seeds the next GOP from the stashed boundary frame, if any.
func (s *Sampler) beginGOP() {
	s.open = false
	s.count = 0
	if s.havePending {
		pf := s.pending.Frame(0)
		s.startGOP(pf.Geom)
		s.acc.Add(pf.Y)
		s.sample.AppendFrame(pf)
		s.count = 1
		s.havePending = false
	}
}

func (s *Sampler) startGOP(geom raw.Geometry) {
	if s.sample == nil {
		s.sample = raw.NewSample(geom, s.sampleFrames)
		s.acc = analysis.NewAccumulator(geom)
	}
	s.sample.Reset(geom)
	s.acc.Reset(geom)
	s.open = true
}

func (s *Sampler) closeGOP() *GOPSample {
	s.open = false
	return &GOPSample{
		Sample:     s.sample,
		FrameCount: s.count,
		Sharpness:  s.acc.Sharpness(),
		Geom:       s.sample.Geometry(),
	}
}

// stash copies the GOP-opening frame aside until the next Next call.
func (s *Sampler) stash(f codec.DecodedFrame) {
	if s.pending == nil {
		s.pending = raw.NewSample(f.Geom, 1)
	}
	s.pending.Reset(f.Geom)
	s.pending.Append(f.Y, f.Cb, f.Cr, f.YStride, f.ChromaStride)
	s.havePending = true
}

// finish emits the trailing partial GOP at end of stream.
func (s *Sampler) finish() (*GOPSample, error) {
	if s.open && s.count > 0 {
		s.open = false
		out := &GOPSample{
			Sample:     s.sample,
			FrameCount: s.count,
			Sharpness:  s.acc.Sharpness(),
			Geom:       s.sample.Geometry(),
		}
		if !s.havePending {
			s.done = true
		}
		return out, nil
	}
	if s.havePending {
		// A boundary frame arrived right before the flush drained; it
		// forms one final single-seeded GOP.
		s.beginGOP()
		s.done = true
		return s.closeGOP(), nil
	}
	s.done = true
	return nil, codec.ErrEndOfStream
}

// lumaView packs a strided decoder luma plane into the tight layout the
// accumulator reads.
func lumaView(f codec.DecodedFrame) []byte {
	if f.YStride == f.Geom.Width {
		return f.Y[:f.Geom.Width*f.Geom.Height]
	}
	packed := make([]byte, f.Geom.Width*f.Geom.Height)
	for row := 0; row < f.Geom.Height; row++ {
		copy(packed[row*f.Geom.Width:(row+1)*f.Geom.Width],
			f.Y[row*f.YStride:row*f.YStride+f.Geom.Width])
	}
	return packed
}
