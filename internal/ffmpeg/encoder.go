package ffmpeg

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/raw"
)

// Encoder runs one libx264 encode through an ffmpeg process. The CLI
// cannot retune a live process, so Reconfigure reports unsupported and
// the trial runner reopens instead. The process exits once the flush
// drains; the encoder does not accept a new stream after that, and
// SendFrame returns an error.
type Encoder struct {
	opts  codec.EncoderOptions
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	output bytes.Buffer
	stderr strings.Builder
	read   sync.WaitGroup

	flushed bool
	drained bool
}

// NewEncoder is the codec.EncoderFactory for the ffmpeg backend.
func NewEncoder(opts codec.EncoderOptions) (codec.Encoder, error) {
	args := []string{
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", opts.Geom.Width, opts.Geom.Height),
		"-r", fmt.Sprintf("%f", opts.FrameRate),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-profile:v", opts.Profile,
		"-crf", fmt.Sprintf("%d", opts.CRF),
	}
	if opts.TuneSSIM {
		args = append(args, "-tune", "ssim")
	}
	if opts.AQStrength > 0 {
		args = append(args, "-x264-params", fmt.Sprintf("aq-strength=%.4f", opts.AQStrength))
	}
	args = append(args, "-f", "h264", "pipe:1")

	cmd := exec.Command("ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	e := &Encoder{opts: opts, cmd: cmd, stdin: stdin}
	cmd.Stderr = &e.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}

	// Drain stdout continuously so the process never blocks on a full
	// pipe while frames are still being fed.
	e.read.Add(1)
	go func() {
		defer e.read.Done()
		buf := make([]byte, 64*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				e.mu.Lock()
				e.output.Write(buf[:n])
				e.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	return e, nil
}

func (e *Encoder) SendFrame(f raw.Frame) error {
	if f.Y == nil {
		if !e.flushed {
			e.flushed = true
			return e.stdin.Close()
		}
		return nil
	}
	if e.flushed {
		return fmt.Errorf("encoder already flushed")
	}
	for _, plane := range [][]byte{f.Y, f.Cb, f.Cr} {
		if _, err := e.stdin.Write(plane); err != nil {
			return fmt.Errorf("write frame: %w: %s", err, e.stderr.String())
		}
	}
	return nil
}

func (e *Encoder) ReceivePacket() (codec.Packet, error) {
	if !e.flushed {
		return codec.Packet{}, codec.ErrAgain
	}
	if e.drained {
		return codec.Packet{}, codec.ErrEndOfStream
	}

	e.read.Wait()
	if err := e.cmd.Wait(); err != nil {
		return codec.Packet{}, fmt.Errorf("ffmpeg encode: %w: %s", err, e.stderr.String())
	}
	e.drained = true

	e.mu.Lock()
	data := make([]byte, e.output.Len())
	copy(data, e.output.Bytes())
	e.mu.Unlock()
	return codec.Packet{Data: data}, nil
}

func (e *Encoder) Reconfigure(crf int, aqStrength float64) error {
	return codec.ErrReconfigureUnsupported
}

func (e *Encoder) Close() error {
	if !e.drained {
		_ = e.stdin.Close()
		_ = e.cmd.Process.Kill()
		e.read.Wait()
		_ = e.cmd.Wait()
		e.drained = true
	}
	return nil
}
