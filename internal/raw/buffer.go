// Package raw provides planar 4:2:0 8-bit pixel buffers shared between the
// sampler, the filter and trial services, and the quality scorer.
package raw

import "fmt"

// Geometry describes the luma dimensions of a frame. Chroma planes are
// subsampled 2:1 in both directions.
type Geometry struct {
	Width  int
	Height int
}

// FrameSize returns the byte size of one planar 4:2:0 frame.
func (g Geometry) FrameSize() int {
	return g.Width * g.Height * 3 / 2
}

// LumaSize returns the byte size of the luma plane.
func (g Geometry) LumaSize() int {
	return g.Width * g.Height
}

// ChromaSize returns the byte size of one chroma plane.
func (g Geometry) ChromaSize() int {
	return (g.Width / 2) * (g.Height / 2)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// Frame is a read-write view over one planar frame inside a Sample.
type Frame struct {
	Y    []byte
	Cb   []byte
	Cr   []byte
	Geom Geometry
}

// Sample holds up to Cap decoded frames of one GOP stored contiguously in
// planar order. A Sample is owned by the search driver; collaborators
// receive views through Frame and must not retain them across GOPs.
type Sample struct {
	data   []byte
	geom   Geometry
	frames int
	cap    int
}

// NewSample allocates a sample buffer for up to capFrames frames at the
// given geometry.
func NewSample(geom Geometry, capFrames int) *Sample {
	return &Sample{
		data: make([]byte, geom.FrameSize()*capFrames),
		geom: geom,
		cap:  capFrames,
	}
}

// Geometry returns the sample geometry.
func (s *Sample) Geometry() Geometry { return s.geom }

// Frames returns the number of frames currently stored.
func (s *Sample) Frames() int { return s.frames }

// Cap returns the frame capacity.
func (s *Sample) Cap() int { return s.cap }

// Reset drops all stored frames, optionally re-dimensioning the buffer.
// The backing array is reused when the new geometry fits.
func (s *Sample) Reset(geom Geometry) {
	need := geom.FrameSize() * s.cap
	if need > len(s.data) {
		s.data = make([]byte, need)
	}
	s.geom = geom
	s.frames = 0
}

// Frame returns a view of frame i. Panics if i is out of range, matching
// slice semantics.
func (s *Sample) Frame(i int) Frame {
	if i < 0 || i >= s.frames {
		panic(fmt.Sprintf("raw: frame index %d out of range [0,%d)", i, s.frames))
	}
	return s.frameAt(i)
}

// Append copies one frame's planes into the sample. The planes may carry
// strides wider than the picture; only the visible region is copied.
// Returns false without copying when the sample is full.
func (s *Sample) Append(y, cb, cr []byte, yStride, cStride int) bool {
	if s.frames >= s.cap {
		return false
	}
	dst := s.frameAt(s.frames)
	copyPlane(dst.Y, y, s.geom.Width, s.geom.Height, yStride)
	copyPlane(dst.Cb, cb, s.geom.Width/2, s.geom.Height/2, cStride)
	copyPlane(dst.Cr, cr, s.geom.Width/2, s.geom.Height/2, cStride)
	s.frames++
	return true
}

// AppendFrame copies a packed frame view into the sample.
func (s *Sample) AppendFrame(f Frame) bool {
	return s.Append(f.Y, f.Cb, f.Cr, f.Geom.Width, f.Geom.Width/2)
}

// CopyFrom duplicates the frame contents of src into s. Both samples must
// share capacity; s takes src's geometry and frame count.
func (s *Sample) CopyFrom(src *Sample) {
	s.Reset(src.geom)
	n := src.frames * src.geom.FrameSize()
	copy(s.data[:n], src.data[:n])
	s.frames = src.frames
}

// Truncate limits the sample to the first n frames.
func (s *Sample) Truncate(n int) {
	if n < s.frames {
		s.frames = n
	}
}

// Bytes returns the packed planar bytes of the stored frames.
func (s *Sample) Bytes() []byte {
	return s.data[:s.frames*s.geom.FrameSize()]
}

// next returns a writable view of the next free frame slot and marks it
// used. Used by producers that write planes in place.
func (s *Sample) next() (Frame, bool) {
	if s.frames >= s.cap {
		return Frame{}, false
	}
	f := s.frameAt(s.frames)
	s.frames++
	return f, true
}

// AppendBlank reserves the next frame slot and returns a writable view of
// it, for producers that decode directly into the sample.
func (s *Sample) AppendBlank() (Frame, bool) { return s.next() }

func (s *Sample) frameAt(i int) Frame {
	fs := s.geom.FrameSize()
	ls := s.geom.LumaSize()
	cs := s.geom.ChromaSize()
	base := i * fs
	return Frame{
		Y:    s.data[base : base+ls : base+ls],
		Cb:   s.data[base+ls : base+ls+cs : base+ls+cs],
		Cr:   s.data[base+ls+cs : base+fs : base+fs],
		Geom: s.geom,
	}
}

func copyPlane(dst, src []byte, w, h, stride int) {
	if stride == w {
		copy(dst, src[:w*h])
		return
	}
	for row := 0; row < h; row++ {
		copy(dst[row*w:(row+1)*w], src[row*stride:row*stride+w])
	}
}
