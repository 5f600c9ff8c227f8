// Package ffmpeg implements the codec service contracts by driving the
// ffmpeg binary, decoding and encoding through pipes.
package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/ffprobe"
	"github.com/gopq/gopq/internal/raw"
)

// OpenInput probes the input file and starts a raw-frame decode pipe.
// The returned demuxer yields one packet per decoded frame; the paired
// decoder attaches geometry and picture type from the probe.
func OpenInput(path string) (codec.Demuxer, codec.Decoder, error) {
	info, err := ffprobe.GetStreamInfo(path)
	if err != nil {
		return nil, nil, err
	}
	keyframes, err := ffprobe.GetKeyframeIndices(path)
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-pix_fmt", "yuv420p",
		"-f", "rawvideo",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	geom := raw.Geometry{Width: info.Width, Height: info.Height}
	keySet := make(map[int]bool, len(keyframes))
	for _, k := range keyframes {
		keySet[k] = true
	}

	demux := &rawDemuxer{
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, geom.FrameSize()),
		stderr: &stderr,
		geom:   geom,
		fps:    info.FrameRate,
	}
	dec := &rawDecoder{geom: geom, keyframes: keySet}
	return demux, dec, nil
}

// rawDemuxer reads one raw frame per packet from the decode pipe.
type rawDemuxer struct {
	cmd    *exec.Cmd
	out    *bufio.Reader
	stderr *strings.Builder
	geom   raw.Geometry
	fps    float64
	buf    []byte
	closed bool
}

func (d *rawDemuxer) ReadPacket() (codec.Packet, error) {
	if d.closed {
		return codec.Packet{}, codec.ErrEndOfStream
	}
	if d.buf == nil {
		d.buf = make([]byte, d.geom.FrameSize())
	}
	_, err := io.ReadFull(d.out, d.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		d.closed = true
		if werr := d.cmd.Wait(); werr != nil {
			return codec.Packet{}, fmt.Errorf("ffmpeg decode: %w: %s", werr, d.stderr.String())
		}
		return codec.Packet{}, codec.ErrEndOfStream
	}
	if err != nil {
		return codec.Packet{}, fmt.Errorf("read raw frame: %w", err)
	}
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return codec.Packet{Data: out}, nil
}

func (d *rawDemuxer) FrameRate() float64 { return d.fps }

func (d *rawDemuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.cmd.Process.Kill()
	return d.cmd.Wait()
}

// rawDecoder pairs with rawDemuxer: every packet is already one decoded
// frame, so it only attaches plane views and the picture type.
type rawDecoder struct {
	geom      raw.Geometry
	keyframes map[int]bool
	index     int
	pending   []byte
	have      bool
	flushed   bool
}

func (d *rawDecoder) SendPacket(pkt codec.Packet) error {
	if d.have {
		return codec.ErrAgain
	}
	if pkt.Data == nil {
		d.flushed = true
		return nil
	}
	if len(pkt.Data) != d.geom.FrameSize() {
		return fmt.Errorf("packet size %d does not match %s", len(pkt.Data), d.geom)
	}
	d.pending = pkt.Data
	d.have = true
	return nil
}

func (d *rawDecoder) ReceiveFrame() (codec.DecodedFrame, error) {
	if !d.have {
		if d.flushed {
			return codec.DecodedFrame{}, codec.ErrEndOfStream
		}
		return codec.DecodedFrame{}, codec.ErrAgain
	}

	ls := d.geom.LumaSize()
	cs := d.geom.ChromaSize()
	pictType := codec.PictureP
	if d.keyframes[d.index] {
		pictType = codec.PictureI
	}
	f := codec.DecodedFrame{
		Y:            d.pending[:ls],
		Cb:           d.pending[ls : ls+cs],
		Cr:           d.pending[ls+cs:],
		YStride:      d.geom.Width,
		ChromaStride: d.geom.Width / 2,
		Geom:         d.geom,
		Type:         pictType,
	}
	d.index++
	d.have = false
	return f, nil
}

func (d *rawDecoder) Close() error { return nil }
