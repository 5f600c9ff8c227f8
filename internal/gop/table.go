// Package gop holds the per-GOP parameter records the search driver emits
// and the final-pass encoder consumes.
package gop

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gopq/gopq/internal/errors"
)

// Record is the immutable parameter set chosen for one GOP.
type Record struct {
	// FrameCount is the total decoded frame count of the GOP, not just
	// the retained sample.
	FrameCount int

	// Unsharpen is the chosen pre-filter amount, on the 0.1 grid.
	Unsharpen float64

	// AQStrength is the adaptive-quantization strength, >= 1.0.
	AQStrength float64

	// TargetQuality is the stage-1 chosen quality score in [90, 96].
	TargetQuality float64

	// CRF is the stage-2 final constant rate factor.
	CRF int
}

// Table is the dense append-only sequence of per-GOP records, indexed by
// GOP number in demux order.
type Table struct {
	records []Record
}

// NewTable creates an empty parameter table.
func NewTable() *Table {
	return &Table{}
}

// Append adds the next GOP's record. Records are immutable once appended.
func (t *Table) Append(r Record) {
	t.records = append(t.records, r)
}

// Len returns the number of GOPs recorded.
func (t *Table) Len() int { return len(t.records) }

// Record returns the record for GOP g.
func (t *Table) Record(g int) Record { return t.records[g] }

// Records returns a copy of all records.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// TotalFrames returns the cumulative frame count across all GOPs.
func (t *Table) TotalFrames() int {
	var n int
	for _, r := range t.records {
		n += r.FrameCount
	}
	return n
}

// WriteJournal writes the table as a flat file, one record per line:
// gop frame_count unsharpen aq_strength target_quality crf
func (t *Table) WriteJournal(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for g, r := range t.records {
		_, err := fmt.Fprintf(bw, "%d %d %.1f %.4f %.4f %d\n",
			g, r.FrameCount, r.Unsharpen, r.AQStrength, r.TargetQuality, r.CRF)
		if err != nil {
			return errors.NewIOError("write journal record", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.NewIOError("flush journal", err)
	}
	return nil
}

// SaveJournal writes the journal to path, replacing any existing file.
func (t *Table) SaveJournal(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create journal", err)
	}
	defer func() { _ = f.Close() }()
	return t.WriteJournal(f)
}

// ReadJournal loads a table previously written with WriteJournal. The
// final pass uses this when it runs as a separate process.
func ReadJournal(r io.Reader) (*Table, error) {
	t := NewTable()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var g int
		var rec Record
		n, err := fmt.Sscanf(text, "%d %d %f %f %f %d",
			&g, &rec.FrameCount, &rec.Unsharpen, &rec.AQStrength, &rec.TargetQuality, &rec.CRF)
		if err != nil || n != 6 {
			return nil, errors.NewIOError(
				fmt.Sprintf("journal line %d is malformed", line), err)
		}
		if g != t.Len() {
			return nil, errors.NewIOError(
				fmt.Sprintf("journal line %d: gop %d out of order, want %d", line, g, t.Len()), nil)
		}
		t.Append(rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError("read journal", err)
	}
	return t, nil
}

// LoadJournal reads a journal file from path.
func LoadJournal(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open journal", err)
	}
	defer func() { _ = f.Close() }()
	return ReadJournal(f)
}
