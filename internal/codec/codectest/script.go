package codectest

import (
	"encoding/binary"
	"fmt"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/raw"
)

// ScriptFrame describes one frame a scripted input produces.
type ScriptFrame struct {
	Geom    raw.Geometry
	Type    codec.PictureType
	Luma    byte
	Chroma  byte
	Corrupt bool

	// Pixels, when set, overrides the flat Luma/Chroma fill with full
	// planar content.
	Pixels []byte
}

// Keyframe builds a flat keyframe script entry.
func Keyframe(geom raw.Geometry, luma byte) ScriptFrame {
	return ScriptFrame{Geom: geom, Type: codec.PictureI, Luma: luma, Chroma: 128}
}

// Inter builds a flat non-keyframe script entry.
func Inter(geom raw.Geometry, luma byte) ScriptFrame {
	return ScriptFrame{Geom: geom, Type: codec.PictureP, Luma: luma, Chroma: 128}
}

// Textured fills a frame with deterministic pseudo-noise from seed.
func Textured(geom raw.Geometry, pictType codec.PictureType, seed uint32) ScriptFrame {
	pixels := make([]byte, geom.FrameSize())
	state := seed*2654435761 + 1
	for i := range pixels {
		state = state*1664525 + 1013904223
		pixels[i] = byte(state >> 24)
	}
	return ScriptFrame{Geom: geom, Type: pictType, Pixels: pixels}
}

// NewScript builds a demuxer/decoder pair replaying the given frames at
// the given frame rate. decoderDelay frames are held back until more
// input or a flush arrives, exercising the try-again path.
func NewScript(fps float64, decoderDelay int, frames []ScriptFrame) (*ScriptDemuxer, *ScriptDecoder) {
	demux := &ScriptDemuxer{fps: fps, total: len(frames)}
	dec := &ScriptDecoder{frames: frames, delay: decoderDelay}
	return demux, dec
}

// ScriptDemuxer emits one index packet per scripted frame.
type ScriptDemuxer struct {
	fps   float64
	total int
	next  int
}

func (d *ScriptDemuxer) ReadPacket() (codec.Packet, error) {
	if d.next >= d.total {
		return codec.Packet{}, codec.ErrEndOfStream
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(d.next))
	d.next++
	return codec.Packet{Data: data}, nil
}

func (d *ScriptDemuxer) FrameRate() float64 { return d.fps }

func (d *ScriptDemuxer) Close() error { return nil }

// ScriptDecoder materializes scripted frames, holding back delay frames
// until flushed.
type ScriptDecoder struct {
	frames  []ScriptFrame
	delay   int
	queue   []int
	flushed bool
	buf     []byte
}

func (d *ScriptDecoder) SendPacket(pkt codec.Packet) error {
	if pkt.Data == nil {
		d.flushed = true
		return nil
	}
	if len(d.queue) > queueCap {
		return codec.ErrAgain
	}
	idx := int(binary.BigEndian.Uint32(pkt.Data))
	if idx < 0 || idx >= len(d.frames) {
		return fmt.Errorf("scripted packet %d out of range", idx)
	}
	d.queue = append(d.queue, idx)
	return nil
}

func (d *ScriptDecoder) ReceiveFrame() (codec.DecodedFrame, error) {
	held := d.delay
	if d.flushed {
		held = 0
	}
	if len(d.queue) <= held {
		if d.flushed && len(d.queue) == 0 {
			return codec.DecodedFrame{}, codec.ErrEndOfStream
		}
		return codec.DecodedFrame{}, codec.ErrAgain
	}

	sf := d.frames[d.queue[0]]
	d.queue = d.queue[1:]
	return d.materialize(sf), nil
}

func (d *ScriptDecoder) materialize(sf ScriptFrame) codec.DecodedFrame {
	size := sf.Geom.FrameSize()
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	buf := d.buf[:size]

	if sf.Pixels != nil {
		copy(buf, sf.Pixels)
	} else {
		ls := sf.Geom.LumaSize()
		for i := 0; i < ls; i++ {
			buf[i] = sf.Luma
		}
		for i := ls; i < size; i++ {
			buf[i] = sf.Chroma
		}
	}

	ls := sf.Geom.LumaSize()
	cs := sf.Geom.ChromaSize()
	return codec.DecodedFrame{
		Y:            buf[:ls],
		Cb:           buf[ls : ls+cs],
		Cr:           buf[ls+cs:],
		YStride:      sf.Geom.Width,
		ChromaStride: sf.Geom.Width / 2,
		Geom:         sf.Geom,
		Type:         sf.Type,
		Corrupt:      sf.Corrupt,
	}
}

func (d *ScriptDecoder) Close() error { return nil }
