// Package trial runs single encode-decode probes: encode a GOP sample at
// a chosen CRF, decode the output back, and account the encoded bytes.
package trial

import (
	stderrors "errors"
	"fmt"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/raw"
)

// Result is one probe's outcome. Recon is the caller-owned buffer passed
// to Run, returned for convenience.
type Result struct {
	Recon        *raw.Sample
	EncodedBytes int64
}

// Options selects the encoder profile shared by all trials of a run.
type Options struct {
	Preset    string
	Profile   string
	TuneSSIM  bool
	FrameRate float64
}

// Runner drives trial probes against the codec services. One encoder is
// kept open per geometry and reconfigured between probes.
type Runner struct {
	newEncoder codec.EncoderFactory
	newDecoder codec.DecoderFactory
	newParser  func() codec.Parser
	opts       Options

	enc     codec.Encoder
	encGeom raw.Geometry

	firstOfGOP bool
	staging    []byte
}

// NewRunner creates a trial runner over the given codec factories.
func NewRunner(enc codec.EncoderFactory, dec codec.DecoderFactory, parser func() codec.Parser, opts Options) *Runner {
	return &Runner{
		newEncoder: enc,
		newDecoder: dec,
		newParser:  parser,
		opts:       opts,
	}
}

// BeginGOP marks the start of a new GOP. The first trial of each GOP
// encodes one frame fewer than requested, budgeting for the codec's
// deferred first-frame delay.
func (r *Runner) BeginGOP() {
	r.firstOfGOP = true
}

// Close releases the held encoder.
func (r *Runner) Close() error {
	if r.enc != nil {
		err := r.enc.Close()
		r.enc = nil
		return err
	}
	return nil
}

// Run encodes the first sendFrames frames of sample at the given CRF and
// AQ strength, reconstructs the output into recon, and returns the total
// encoded byte count. recon is reset to the sample geometry.
func (r *Runner) Run(sample *raw.Sample, sendFrames, crf int, aqStrength float64, recon *raw.Sample) (Result, error) {
	if sendFrames > sample.Frames() {
		sendFrames = sample.Frames()
	}
	if r.firstOfGOP && sendFrames > 1 {
		sendFrames--
	}
	r.firstOfGOP = false

	if err := r.ensureEncoder(sample.Geometry(), crf, aqStrength); err != nil {
		return Result{}, err
	}

	r.staging = r.staging[:0]
	if err := r.encode(sample, sendFrames); err != nil {
		return Result{}, err
	}

	if err := r.reconstruct(sample.Geometry(), recon); err != nil {
		return Result{}, err
	}

	return Result{Recon: recon, EncodedBytes: int64(len(r.staging))}, nil
}

// ensureEncoder opens or reconfigures the held encoder for this probe.
func (r *Runner) ensureEncoder(geom raw.Geometry, crf int, aqStrength float64) error {
	if r.enc != nil && r.encGeom != geom {
		_ = r.enc.Close()
		r.enc = nil
	}
	if r.enc == nil {
		enc, err := r.newEncoder(codec.EncoderOptions{
			Preset:     r.opts.Preset,
			Profile:    r.opts.Profile,
			TuneSSIM:   r.opts.TuneSSIM,
			Geom:       geom,
			FrameRate:  r.opts.FrameRate,
			CRF:        crf,
			AQStrength: aqStrength,
		})
		if err != nil {
			return errors.NewEncodeError("open encoder", err)
		}
		r.enc = enc
		r.encGeom = geom
		return nil
	}
	if err := r.enc.Reconfigure(crf, aqStrength); err != nil {
		if !stderrors.Is(err, codec.ErrReconfigureUnsupported) {
			return errors.NewEncodeError(fmt.Sprintf("reconfigure crf=%d", crf), err)
		}
		// The backend cannot retune a live stream; reopen instead.
		_ = r.enc.Close()
		r.enc = nil
		return r.ensureEncoder(geom, crf, aqStrength)
	}
	return nil
}

// encode pushes frames and drains packets until the flush completes.
func (r *Runner) encode(sample *raw.Sample, sendFrames int) error {
	for i := 0; i < sendFrames; i++ {
		if err := r.sendFrame(sample.Frame(i)); err != nil {
			return err
		}
	}

	// End-of-stream flush so every output byte is accounted.
	for {
		err := r.enc.SendFrame(raw.Frame{})
		if err == nil {
			break
		}
		if !stderrors.Is(err, codec.ErrAgain) {
			return errors.NewEncodeError("flush encoder", err)
		}
		if err := r.collect(); err != nil {
			return err
		}
	}

	for {
		pkt, err := r.enc.ReceivePacket()
		if stderrors.Is(err, codec.ErrEndOfStream) {
			return nil
		}
		if stderrors.Is(err, codec.ErrAgain) {
			return errors.NewEncodeError("encoder stalled during drain", nil)
		}
		if err != nil {
			return errors.NewEncodeError("drain encoder", err)
		}
		r.staging = append(r.staging, pkt.Data...)
	}
}

func (r *Runner) sendFrame(f raw.Frame) error {
	for {
		err := r.enc.SendFrame(f)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, codec.ErrAgain) {
			return errors.NewEncodeError("send frame", err)
		}
		if err := r.collect(); err != nil {
			return err
		}
	}
}

// collect drains available packets without blocking on more input.
func (r *Runner) collect() error {
	for {
		pkt, err := r.enc.ReceivePacket()
		if stderrors.Is(err, codec.ErrAgain) {
			return nil
		}
		if stderrors.Is(err, codec.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return errors.NewEncodeError("receive packet", err)
		}
		r.staging = append(r.staging, pkt.Data...)
	}
}

// reconstruct feeds the staged bytes through a parser and decoder and
// copies decoded planes into recon.
func (r *Runner) reconstruct(geom raw.Geometry, recon *raw.Sample) error {
	dec, err := r.newDecoder(geom)
	if err != nil {
		return errors.NewEncodeError("open trial decoder", err)
	}
	defer func() { _ = dec.Close() }()

	parser := r.newParser()
	pkts, err := parser.Parse(r.staging)
	if err != nil {
		return errors.NewEncodeError("parse trial stream", err)
	}
	tail, err := parser.Parse(nil)
	if err != nil {
		return errors.NewEncodeError("flush trial parser", err)
	}
	pkts = append(pkts, tail...)

	recon.Reset(geom)

	for _, pkt := range pkts {
		if err := r.feedDecoder(dec, pkt, recon); err != nil {
			return err
		}
	}

	// Flush and drain the decoder dry.
	if err := r.feedDecoder(dec, codec.Packet{}, recon); err != nil {
		return err
	}
	for {
		f, err := dec.ReceiveFrame()
		if stderrors.Is(err, codec.ErrEndOfStream) || stderrors.Is(err, codec.ErrAgain) {
			return nil
		}
		if err != nil {
			return errors.NewEncodeError("drain trial decoder", err)
		}
		recon.Append(f.Y, f.Cb, f.Cr, f.YStride, f.ChromaStride)
	}
}

func (r *Runner) feedDecoder(dec codec.Decoder, pkt codec.Packet, recon *raw.Sample) error {
	for {
		err := dec.SendPacket(pkt)
		if err == nil {
			break
		}
		if !stderrors.Is(err, codec.ErrAgain) {
			return errors.NewEncodeError("send trial packet", err)
		}
		if err := drainInto(dec, recon); err != nil {
			return err
		}
	}
	return drainInto(dec, recon)
}

func drainInto(dec codec.Decoder, recon *raw.Sample) error {
	for {
		f, err := dec.ReceiveFrame()
		if stderrors.Is(err, codec.ErrAgain) || stderrors.Is(err, codec.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return errors.NewEncodeError("receive trial frame", err)
		}
		recon.Append(f.Y, f.Cb, f.Cr, f.YStride, f.ChromaStride)
	}
}
