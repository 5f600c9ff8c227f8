// Package codectest provides deterministic in-memory implementations of
// the codec service contracts for tests. The toy codec quantizes pixels
// by a CRF-derived step and run-length encodes the result, so coarser
// CRFs genuinely produce smaller, lower-quality streams.
package codectest

import (
	"encoding/binary"
	"fmt"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/raw"
)

const (
	packetMagic  = "GQT1"
	headerSize   = 16
	queueCap     = 4
	maxRunLength = 255
)

// StepForCRF maps a CRF onto the toy quantizer step.
func StepForCRF(crf int) int {
	step := crf - 16
	if step < 1 {
		step = 1
	}
	return step
}

func quantize(v byte, step int) byte {
	q := (int(v)/step)*step + step/2
	if q > 255 {
		q = 255
	}
	return byte(q)
}

// encodeFrame packs one quantized frame into a length-prefixed packet.
func encodeFrame(f raw.Frame, step int) codec.Packet {
	payload := make([]byte, 0, f.Geom.FrameSize()/4)
	for _, plane := range [][]byte{f.Y, f.Cb, f.Cr} {
		payload = rlePlane(payload, plane, step)
	}

	data := make([]byte, headerSize+len(payload))
	copy(data, packetMagic)
	binary.BigEndian.PutUint32(data[4:], uint32(len(payload)))
	binary.BigEndian.PutUint16(data[8:], uint16(f.Geom.Width))
	binary.BigEndian.PutUint16(data[10:], uint16(f.Geom.Height))
	data[12] = byte(step)
	copy(data[headerSize:], payload)
	return codec.Packet{Data: data}
}

func rlePlane(dst, plane []byte, step int) []byte {
	i := 0
	for i < len(plane) {
		v := quantize(plane[i], step)
		run := 1
		for i+run < len(plane) && run < maxRunLength && quantize(plane[i+run], step) == v {
			run++
		}
		dst = append(dst, v, byte(run))
		i += run
	}
	return dst
}

// decodeFrame expands one packet back into planar pixels.
func decodeFrame(data []byte) (raw.Geometry, []byte, error) {
	if len(data) < headerSize || string(data[:4]) != packetMagic {
		return raw.Geometry{}, nil, fmt.Errorf("bad packet header")
	}
	payloadLen := int(binary.BigEndian.Uint32(data[4:]))
	geom := raw.Geometry{
		Width:  int(binary.BigEndian.Uint16(data[8:])),
		Height: int(binary.BigEndian.Uint16(data[10:])),
	}
	payload := data[headerSize : headerSize+payloadLen]

	pixels := make([]byte, 0, geom.FrameSize())
	for i := 0; i+1 < len(payload); i += 2 {
		v, run := payload[i], int(payload[i+1])
		for j := 0; j < run; j++ {
			pixels = append(pixels, v)
		}
	}
	if len(pixels) != geom.FrameSize() {
		return raw.Geometry{}, nil, fmt.Errorf("payload expands to %d bytes, want %d", len(pixels), geom.FrameSize())
	}
	return geom, pixels, nil
}

// Encoder is the toy trial encoder. It honors the ErrAgain protocol with
// a bounded packet queue, supports live Reconfigure, and accepts a new
// stream after a flush drains.
type Encoder struct {
	opts    codec.EncoderOptions
	crf     int
	aq      float64
	queue   []codec.Packet
	flushed bool

	// Opens counts how many times the factory built an encoder;
	// Reconfigures counts live retunes. Tests assert reuse through these.
	stats *EncoderStats
}

// EncoderStats observes encoder lifecycle behavior across trials.
type EncoderStats struct {
	Opens        int
	Reconfigures int
	Frames       int
}

// NewFactory returns an EncoderFactory recording into stats, which may
// be nil.
func NewFactory(stats *EncoderStats) codec.EncoderFactory {
	return func(opts codec.EncoderOptions) (codec.Encoder, error) {
		if stats != nil {
			stats.Opens++
		}
		return &Encoder{opts: opts, crf: opts.CRF, aq: opts.AQStrength, stats: stats}, nil
	}
}

func (e *Encoder) SendFrame(f raw.Frame) error {
	if f.Y == nil {
		e.flushed = true
		return nil
	}
	if len(e.queue) >= queueCap {
		return codec.ErrAgain
	}
	if e.stats != nil {
		e.stats.Frames++
	}
	e.queue = append(e.queue, encodeFrame(f, StepForCRF(e.crf)))
	return nil
}

func (e *Encoder) ReceivePacket() (codec.Packet, error) {
	if len(e.queue) > 0 {
		pkt := e.queue[0]
		e.queue = e.queue[1:]
		return pkt, nil
	}
	if e.flushed {
		e.flushed = false
		return codec.Packet{}, codec.ErrEndOfStream
	}
	return codec.Packet{}, codec.ErrAgain
}

func (e *Encoder) Reconfigure(crf int, aqStrength float64) error {
	if e.stats != nil {
		e.stats.Reconfigures++
	}
	e.crf = crf
	e.aq = aqStrength
	return nil
}

func (e *Encoder) Close() error { return nil }

// Decoder decodes toy packets back into frames.
type Decoder struct {
	queue   [][]byte
	geoms   []raw.Geometry
	flushed bool
	decoded int
}

// NewDecoder is the codec.DecoderFactory for the toy codec. The packet
// headers carry their own geometry, so the hint goes unused.
func NewDecoder(raw.Geometry) (codec.Decoder, error) {
	return &Decoder{}, nil
}

func (d *Decoder) SendPacket(pkt codec.Packet) error {
	if pkt.Data == nil {
		d.flushed = true
		return nil
	}
	if len(d.queue) >= queueCap {
		return codec.ErrAgain
	}
	geom, pixels, err := decodeFrame(pkt.Data)
	if err != nil {
		return err
	}
	d.queue = append(d.queue, pixels)
	d.geoms = append(d.geoms, geom)
	return nil
}

func (d *Decoder) ReceiveFrame() (codec.DecodedFrame, error) {
	if len(d.queue) == 0 {
		if d.flushed {
			return codec.DecodedFrame{}, codec.ErrEndOfStream
		}
		return codec.DecodedFrame{}, codec.ErrAgain
	}

	pixels := d.queue[0]
	geom := d.geoms[0]
	d.queue = d.queue[1:]
	d.geoms = d.geoms[1:]

	ls := geom.LumaSize()
	cs := geom.ChromaSize()
	pictType := codec.PictureP
	if d.decoded == 0 {
		pictType = codec.PictureI
	}
	d.decoded++

	return codec.DecodedFrame{
		Y:            pixels[:ls],
		Cb:           pixels[ls : ls+cs],
		Cr:           pixels[ls+cs:],
		YStride:      geom.Width,
		ChromaStride: geom.Width / 2,
		Geom:         geom,
		Type:         pictType,
	}, nil
}

func (d *Decoder) Close() error { return nil }

// Parser restores packet boundaries from concatenated toy packets.
type Parser struct {
	buf []byte
}

// NewParser creates a toy stream parser.
func NewParser() codec.Parser { return &Parser{} }

func (p *Parser) Parse(data []byte) ([]codec.Packet, error) {
	if data == nil {
		if len(p.buf) != 0 {
			return nil, fmt.Errorf("parser flushed with %d trailing bytes", len(p.buf))
		}
		return nil, nil
	}
	p.buf = append(p.buf, data...)

	var pkts []codec.Packet
	for len(p.buf) >= headerSize {
		if string(p.buf[:4]) != packetMagic {
			return nil, fmt.Errorf("bad packet magic")
		}
		payloadLen := int(binary.BigEndian.Uint32(p.buf[4:]))
		total := headerSize + payloadLen
		if len(p.buf) < total {
			break
		}
		pkt := make([]byte, total)
		copy(pkt, p.buf[:total])
		p.buf = p.buf[total:]
		pkts = append(pkts, codec.Packet{Data: pkt})
	}
	return pkts, nil
}
