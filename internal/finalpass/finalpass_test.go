package finalpass

import (
	"testing"

	"github.com/gopq/gopq/internal/codec"
	coreerrors "github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/gop"
	"github.com/gopq/gopq/internal/raw"
)

// recordingEncoder captures Reconfigure calls keyed by nothing but
// order.
type recordingEncoder struct {
	crfs []int
	aqs  []float64
}

func (e *recordingEncoder) SendFrame(raw.Frame) error { return nil }

func (e *recordingEncoder) ReceivePacket() (codec.Packet, error) {
	return codec.Packet{}, codec.ErrAgain
}

func (e *recordingEncoder) Reconfigure(crf int, aq float64) error {
	e.crfs = append(e.crfs, crf)
	e.aqs = append(e.aqs, aq)
	return nil
}

func (e *recordingEncoder) Close() error { return nil }

func testTable() *gop.Table {
	t := gop.NewTable()
	t.Append(gop.Record{FrameCount: 300, CRF: 24, AQStrength: 1.2, TargetQuality: 94})
	t.Append(gop.Record{FrameCount: 450, CRF: 28, AQStrength: 1.0, TargetQuality: 92})
	t.Append(gop.Record{FrameCount: 10, CRF: 20, AQStrength: 1.5, TargetQuality: 96})
	return t
}

func TestReconfiguresAtBoundaries(t *testing.T) {
	table := testTable()
	tracker := NewTracker(table)
	enc := &recordingEncoder{}

	total := table.TotalFrames()
	for frame := 0; frame < total; frame++ {
		if err := tracker.Apply(enc, frame); err != nil {
			t.Fatal(err)
		}
	}

	wantCRFs := []int{24, 28, 20}
	if len(enc.crfs) != len(wantCRFs) {
		t.Fatalf("reconfigured %d times, want %d", len(enc.crfs), len(wantCRFs))
	}
	for i, want := range wantCRFs {
		if enc.crfs[i] != want {
			t.Errorf("reconfigure %d: crf %d, want %d", i, enc.crfs[i], want)
		}
	}
	if enc.aqs[2] != 1.5 {
		t.Errorf("reconfigure 2: aq %g, want 1.5", enc.aqs[2])
	}
}

func TestBoundaryFramesExact(t *testing.T) {
	table := testTable()
	tracker := NewTracker(table)
	enc := &recordingEncoder{}

	// First frame configures GOP 0.
	if err := tracker.Apply(enc, 0); err != nil {
		t.Fatal(err)
	}
	if tracker.CurrentGOP() != 0 || len(enc.crfs) != 1 {
		t.Fatalf("first frame should configure gop 0")
	}

	// One frame short of the boundary: nothing happens.
	if err := tracker.Apply(enc, 299); err != nil {
		t.Fatal(err)
	}
	if len(enc.crfs) != 1 {
		t.Error("no reconfiguration before the boundary")
	}

	// The boundary frame enters GOP 1.
	if err := tracker.Apply(enc, 300); err != nil {
		t.Fatal(err)
	}
	if tracker.CurrentGOP() != 1 || len(enc.crfs) != 2 {
		t.Error("crossing the boundary must reconfigure")
	}
}

func TestFramesPastTableKeepLastGOP(t *testing.T) {
	table := testTable()
	tracker := NewTracker(table)
	enc := &recordingEncoder{}

	for frame := 0; frame < table.TotalFrames()+100; frame++ {
		if err := tracker.Apply(enc, frame); err != nil {
			t.Fatal(err)
		}
	}
	if len(enc.crfs) != 3 {
		t.Errorf("reconfigured %d times, want 3", len(enc.crfs))
	}
}

func TestEmptyTable(t *testing.T) {
	tracker := NewTracker(gop.NewTable())
	err := tracker.Apply(&recordingEncoder{}, 0)
	if !coreerrors.IsKind(err, coreerrors.KindConfig) {
		t.Errorf("empty table should be a config error, got %v", err)
	}
}
