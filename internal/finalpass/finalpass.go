// Package finalpass applies the per-GOP parameter table to the full
// re-encode: as the encoder crosses GOP boundaries it is reconfigured
// with that GOP's CRF and AQ strength.
package finalpass

import (
	"fmt"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/gop"
	"github.com/gopq/gopq/internal/logging"
)

// Tracker walks the parameter table against a running encoded-frame
// count and issues rate-control reconfigurations at GOP crossings.
type Tracker struct {
	table    *gop.Table
	current  int
	boundary int
	primed   bool
}

// NewTracker creates a tracker over an emitted table.
func NewTracker(table *gop.Table) *Tracker {
	return &Tracker{table: table, current: -1}
}

// CurrentGOP returns the index of the GOP the last applied frame belongs
// to, or -1 before the first frame.
func (t *Tracker) CurrentGOP() int { return t.current }

// Apply must be called with the running total of frames handed to the
// encoder so far, before each frame is sent. It reconfigures the encoder
// whenever the count enters a new GOP. Frames past the table's end keep
// the last GOP's parameters.
func (t *Tracker) Apply(enc codec.Encoder, framesEncoded int) error {
	if t.table.Len() == 0 {
		return errors.NewConfigError("parameter table is empty")
	}

	for t.current+1 < t.table.Len() && (!t.primed || framesEncoded >= t.boundary) {
		t.current++
		t.primed = true
		rec := t.table.Record(t.current)
		t.boundary += rec.FrameCount

		if err := enc.Reconfigure(rec.CRF, rec.AQStrength); err != nil {
			return errors.NewEncodeError(
				fmt.Sprintf("reconfigure at gop %d", t.current), err)
		}
		logging.Debug("final pass reconfigured",
			"gop", t.current, "crf", rec.CRF, "aq", rec.AQStrength, "frame", framesEncoded)
	}
	return nil
}
