// Package reporter provides progress reporting for analysis runs.
package reporter

import "github.com/gopq/gopq/internal/gop"

// RunInfo describes a starting analysis run.
type RunInfo struct {
	InputFile   string
	JournalFile string
	MinGOP      int
	SampleSize  int
	Threshold   float64
}

// RunError carries a user-facing failure with context.
type RunError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// RunSummary describes a finished run.
type RunSummary struct {
	GOPs        int
	TotalFrames int
	Trials      int
	Stage0Secs  float64
	Stage1Secs  float64
	Stage2Secs  float64
	Interrupted bool
}

// Reporter defines the interface for progress reporting.
type Reporter interface {
	RunStarted(info RunInfo)
	GOPStarted(gop int, frameCount int, geometry string)
	GOPComplete(gop int, rec gop.Record)
	Warning(message string)
	Error(err RunError)
	RunComplete(summary RunSummary)
}

// Null is a no-op reporter that discards all updates.
type Null struct{}

func (Null) RunStarted(RunInfo)             {}
func (Null) GOPStarted(int, int, string)    {}
func (Null) GOPComplete(int, gop.Record)    {}
func (Null) Warning(string)                 {}
func (Null) Error(RunError)                 {}
func (Null) RunComplete(RunSummary)         {}
