package reporter

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/gopq/gopq/internal/gop"
)

// JSON emits one JSON object per event, one per line, for machine
// consumers tailing the run.
type JSON struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSON creates a JSON-lines reporter writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{enc: json.NewEncoder(w)}
}

type jsonEvent struct {
	Event   string      `json:"event"`
	GOP     *int        `json:"gop,omitempty"`
	Record  *gop.Record `json:"record,omitempty"`
	Message string      `json:"message,omitempty"`
	Info    *RunInfo    `json:"info,omitempty"`
	Summary *RunSummary `json:"summary,omitempty"`
	Frames  int         `json:"frames,omitempty"`
	Geom    string      `json:"geometry,omitempty"`
}

func (r *JSON) emit(ev jsonEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(ev)
}

func (r *JSON) RunStarted(info RunInfo) {
	r.emit(jsonEvent{Event: "run_started", Info: &info})
}

func (r *JSON) GOPStarted(gopIdx int, frameCount int, geometry string) {
	r.emit(jsonEvent{Event: "gop_started", GOP: &gopIdx, Frames: frameCount, Geom: geometry})
}

func (r *JSON) GOPComplete(gopIdx int, rec gop.Record) {
	r.emit(jsonEvent{Event: "gop_complete", GOP: &gopIdx, Record: &rec})
}

func (r *JSON) Warning(message string) {
	r.emit(jsonEvent{Event: "warning", Message: message})
}

func (r *JSON) Error(err RunError) {
	r.emit(jsonEvent{Event: "error", Message: err.Title + ": " + err.Message})
}

func (r *JSON) RunComplete(summary RunSummary) {
	r.emit(jsonEvent{Event: "run_complete", Summary: &summary})
}
