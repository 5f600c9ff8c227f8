package ffmpeg

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/raw"
)

// Decoder reconstructs trial output: it buffers the encoded stream and
// decodes it in one ffmpeg run when flushed.
type Decoder struct {
	geom    raw.Geometry
	input   bytes.Buffer
	frames  []byte
	next    int
	total   int
	flushed bool
}

// NewDecoder is the codec.DecoderFactory for the ffmpeg backend.
func NewDecoder(geom raw.Geometry) (codec.Decoder, error) {
	return &Decoder{geom: geom}, nil
}

func (d *Decoder) SendPacket(pkt codec.Packet) error {
	if pkt.Data == nil {
		if d.flushed {
			return nil
		}
		d.flushed = true
		return d.run()
	}
	if d.flushed {
		return fmt.Errorf("decoder already flushed")
	}
	d.input.Write(pkt.Data)
	return nil
}

// run decodes the buffered stream back to raw frames.
func (d *Decoder) run() error {
	if d.input.Len() == 0 {
		return nil
	}
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-pix_fmt", "yuv420p",
		"-f", "rawvideo",
		"pipe:1",
	)
	cmd.Stdin = &d.input
	var out bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg decode: %w: %s", err, stderr.String())
	}

	d.frames = out.Bytes()
	d.total = len(d.frames) / d.geom.FrameSize()
	return nil
}

func (d *Decoder) ReceiveFrame() (codec.DecodedFrame, error) {
	if !d.flushed {
		return codec.DecodedFrame{}, codec.ErrAgain
	}
	if d.next >= d.total {
		return codec.DecodedFrame{}, codec.ErrEndOfStream
	}

	fs := d.geom.FrameSize()
	ls := d.geom.LumaSize()
	cs := d.geom.ChromaSize()
	base := d.next * fs
	frame := d.frames[base : base+fs]
	d.next++

	return codec.DecodedFrame{
		Y:            frame[:ls],
		Cb:           frame[ls : ls+cs],
		Cr:           frame[ls+cs:],
		YStride:      d.geom.Width,
		ChromaStride: d.geom.Width / 2,
		Geom:         d.geom,
	}, nil
}

func (d *Decoder) Close() error { return nil }

// StreamParser passes the whole trial stream through as one packet; the
// decode run restores frame boundaries itself.
type StreamParser struct {
	buf bytes.Buffer
}

// NewStreamParser creates a whole-stream parser.
func NewStreamParser() codec.Parser { return &StreamParser{} }

func (p *StreamParser) Parse(data []byte) ([]codec.Packet, error) {
	if data == nil {
		if p.buf.Len() == 0 {
			return nil, nil
		}
		out := make([]byte, p.buf.Len())
		copy(out, p.buf.Bytes())
		p.buf.Reset()
		return []codec.Packet{{Data: out}}, nil
	}
	p.buf.Write(data)
	return nil, nil
}
