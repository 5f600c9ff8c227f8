package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gopq/gopq/internal/gop"
)

func TestJSONEventStream(t *testing.T) {
	var buf bytes.Buffer
	rep := NewJSON(&buf)

	rep.RunStarted(RunInfo{InputFile: "in.mp4", MinGOP: 300, SampleSize: 50, Threshold: 400})
	rep.GOPStarted(0, 412, "1280x720")
	rep.GOPComplete(0, gop.Record{FrameCount: 412, Unsharpen: 0.2, AQStrength: 1.1, TargetQuality: 93.5, CRF: 26})
	rep.Warning("something minor")
	rep.RunComplete(RunSummary{GOPs: 1, TotalFrames: 412, Trials: 17})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("emitted %d lines, want 5", len(lines))
	}

	events := make([]string, 0, len(lines))
	for _, line := range lines {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		events = append(events, ev["event"].(string))
	}

	want := []string{"run_started", "gop_started", "gop_complete", "warning", "run_complete"}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestCompositeFansOut(t *testing.T) {
	var a, b bytes.Buffer
	comp := NewComposite(NewJSON(&a), NewJSON(&b))

	comp.GOPComplete(3, gop.Record{FrameCount: 10, CRF: 22, AQStrength: 1, TargetQuality: 92})

	if a.Len() == 0 || a.String() != b.String() {
		t.Error("composite must forward identical events to all reporters")
	}
}

func TestNullReporterIsSilent(t *testing.T) {
	// Just exercise the no-op paths.
	var n Null
	n.RunStarted(RunInfo{})
	n.GOPStarted(0, 0, "")
	n.GOPComplete(0, gop.Record{})
	n.Warning("")
	n.Error(RunError{})
	n.RunComplete(RunSummary{})
}
