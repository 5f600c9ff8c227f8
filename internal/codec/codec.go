// Package codec defines the contracts the search core consumes from the
// native demux, decode, encode, and filter services. Implementations wrap
// whatever codec library the deployment provides; the core only depends on
// these interfaces.
package codec

import (
	"errors"

	"github.com/gopq/gopq/internal/raw"
)

// Transient signals. These drive control flow and are never surfaced as
// run failures.
var (
	// ErrAgain means the call would block; the caller re-polls the other
	// half of the codec before retrying.
	ErrAgain = errors.New("codec: resource temporarily unavailable")

	// ErrEndOfStream means the service has been fully drained.
	ErrEndOfStream = errors.New("codec: end of stream")

	// ErrReconfigureUnsupported means the encoder cannot retune a live
	// stream; callers tear it down and reopen with the new parameters.
	ErrReconfigureUnsupported = errors.New("codec: reconfigure unsupported")
)

// PictureType classifies a decoded picture.
type PictureType int

const (
	PictureUnknown PictureType = iota
	PictureI
	PictureP
	PictureB
)

// IsKeyframe reports whether the picture starts a GOP.
func (t PictureType) IsKeyframe() bool { return t == PictureI }

// Packet is one demuxed unit of compressed data.
type Packet struct {
	Data []byte
}

// DecodedFrame exposes the planes of one decoded picture. Plane slices
// belong to the decoder and are only valid until the next receive.
type DecodedFrame struct {
	Y, Cb, Cr    []byte
	YStride      int
	ChromaStride int
	Geom         raw.Geometry
	Type         PictureType
	Corrupt      bool
}

// Demuxer yields compressed packets in presentation order.
type Demuxer interface {
	// ReadPacket returns the next video packet or ErrEndOfStream.
	ReadPacket() (Packet, error)
	// FrameRate returns the stream frame rate in frames per second.
	FrameRate() float64
	Close() error
}

// Decoder is the push/pull half-duplex decode service.
type Decoder interface {
	// SendPacket feeds one packet. Returns ErrAgain when the decoder must
	// be drained first; the caller re-sends the same packet afterwards.
	// A nil-data packet flushes.
	SendPacket(pkt Packet) error
	// ReceiveFrame pulls the next decoded frame. Returns ErrAgain when
	// more input is needed and ErrEndOfStream once flushed dry.
	ReceiveFrame() (DecodedFrame, error)
	Close() error
}

// EncoderOptions selects the trial encoder profile.
type EncoderOptions struct {
	Preset    string
	Profile   string
	TuneSSIM  bool
	Geom      raw.Geometry
	FrameRate float64
	// CRF and AQStrength are the initial rate-control parameters; both
	// may later change through Reconfigure.
	CRF        int
	AQStrength float64
}

// Encoder is the trial/final-pass encode service. Rate-control parameters
// are reconfigurable between frames without reopening. After a flush
// fully drains, the encoder accepts a new stream; implementations that
// cannot resume must reopen internally.
type Encoder interface {
	// SendFrame feeds one raw frame; a zero Frame flushes. Returns
	// ErrAgain when output must be drained first.
	SendFrame(f raw.Frame) error
	// ReceivePacket pulls encoded bytes. Returns ErrAgain when more input
	// is needed and ErrEndOfStream after the flush drains.
	ReceivePacket() (Packet, error)
	// Reconfigure updates CRF and AQ strength for subsequent frames.
	Reconfigure(crf int, aqStrength float64) error
	Close() error
}

// EncoderFactory opens a fresh encoder. Trials reuse one encoder per GOP
// through Reconfigure where the implementation supports it; the factory
// exists for implementations that must reopen instead.
type EncoderFactory func(opts EncoderOptions) (Encoder, error)

// DecoderFactory opens a fresh decoder for trial reconstruction at the
// given geometry, fed through a parser that restores packet boundaries
// from a contiguous byte stream.
type DecoderFactory func(geom raw.Geometry) (Decoder, error)

// Parser splits a contiguous encoded byte stream into packets.
type Parser interface {
	// Parse consumes bytes and returns complete packets; a nil input
	// flushes any buffered tail.
	Parse(data []byte) ([]Packet, error)
}
