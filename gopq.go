// Package gopq provides per-GOP perceptual-quality analysis for video
// transcoding: for each group of pictures it chooses an unsharpen
// pre-filter amount, an adaptive-quantization strength, a target quality
// score, and the cheapest CRF that reaches it, and emits a parameter
// table for the final encoding pass.
//
// Basic usage:
//
//	analyzer, err := gopq.New("input.mp4",
//	    gopq.WithJournal("input.gopq"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := analyzer.Analyze(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("analyzed %d GOPs\n", result.Table.Len())
package gopq

import (
	"context"

	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/config"
	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/ffmpeg"
	"github.com/gopq/gopq/internal/gop"
	"github.com/gopq/gopq/internal/quality"
	"github.com/gopq/gopq/internal/raw"
	"github.com/gopq/gopq/internal/reporter"
	"github.com/gopq/gopq/internal/sampler"
	"github.com/gopq/gopq/internal/search"
	"github.com/gopq/gopq/internal/trial"
	"github.com/gopq/gopq/internal/unsharp"
	"github.com/gopq/gopq/internal/validation"
)

// Backend supplies the codec services an analysis run consumes. The
// default backend drives the ffmpeg binary.
type Backend struct {
	OpenInput  func(path string) (codec.Demuxer, codec.Decoder, error)
	NewEncoder codec.EncoderFactory
	NewDecoder codec.DecoderFactory
	NewParser  func() codec.Parser
}

// FFmpegBackend returns the default backend built on the ffmpeg binary.
func FFmpegBackend() Backend {
	return Backend{
		OpenInput:  ffmpeg.OpenInput,
		NewEncoder: ffmpeg.NewEncoder,
		NewDecoder: ffmpeg.NewDecoder,
		NewParser:  ffmpeg.NewStreamParser,
	}
}

// Analyzer is the main entry point for per-GOP analysis.
type Analyzer struct {
	cfg     *config.Config
	backend Backend
	scorer  quality.Scorer
	rep     reporter.Reporter
}

// Result contains the outcome of one analysis run.
type Result struct {
	Table      *gop.Table
	Stats      search.Stats
	Validation *validation.Result
}

// Option configures the analyzer.
type Option func(*Analyzer)

// New creates a new Analyzer for the given input path.
func New(inputPath string, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		cfg:     config.NewConfig(inputPath),
		backend: FFmpegBackend(),
		scorer:  quality.NewPSNR(),
		rep:     reporter.Null{},
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// WithMinGOP sets the minimum frame count before a keyframe closes a GOP.
func WithMinGOP(frames int) Option {
	return func(a *Analyzer) { a.cfg.MinGOPFrames = frames }
}

// WithSampleFrames sets how many decoded frames each GOP sample retains.
func WithSampleFrames(frames int) Option {
	return func(a *Analyzer) { a.cfg.SampleFrames = frames }
}

// WithMarginalThreshold sets the stage-1 knee threshold in kb/s per
// quality point.
func WithMarginalThreshold(threshold float64) Option {
	return func(a *Analyzer) { a.cfg.MarginalThreshold = threshold }
}

// WithTargetTolerance lowers the stage-2 target by two points when the
// result stays at or above 91.
func WithTargetTolerance(enabled bool) Option {
	return func(a *Analyzer) { a.cfg.TargetTolerance = enabled }
}

// WithModelPath sets the quality model path for native scorer backends.
func WithModelPath(path string) Option {
	return func(a *Analyzer) { a.cfg.ModelPath = path }
}

// WithJournal writes the parameter table to the given path on success.
func WithJournal(path string) Option {
	return func(a *Analyzer) { a.cfg.JournalPath = path }
}

// WithCRF5Reference scores stages 0 and 1 against a near-lossless
// pre-encode instead of the decoded input.
func WithCRF5Reference(enabled bool) Option {
	return func(a *Analyzer) { a.cfg.CRF5Reference = enabled }
}

// WithBackend replaces the codec backend.
func WithBackend(b Backend) Option {
	return func(a *Analyzer) { a.backend = b }
}

// WithScorer replaces the quality scorer.
func WithScorer(s quality.Scorer) Option {
	return func(a *Analyzer) { a.scorer = s }
}

// WithReporter sets the progress reporter.
func WithReporter(r reporter.Reporter) Option {
	return func(a *Analyzer) { a.rep = r }
}

// Config returns the analyzer's resolved configuration.
func (a *Analyzer) Config() config.Config { return *a.cfg }

// Analyze runs the per-GOP search over the whole input and returns the
// parameter table. Cancelling ctx stops after the in-flight trial; GOPs
// decided so far are kept and journaled, the in-flight one is discarded.
func (a *Analyzer) Analyze(ctx context.Context) (*Result, error) {
	demux, dec, err := a.backend.OpenInput(a.cfg.InputPath)
	if err != nil {
		return nil, errors.NewDemuxError("open input", err)
	}
	defer func() { _ = demux.Close() }()
	defer func() { _ = dec.Close() }()

	smp := sampler.New(demux, dec, a.cfg.MinGOPFrames, a.cfg.SampleFrames)

	runner := trial.NewRunner(a.backend.NewEncoder, a.backend.NewDecoder, a.backend.NewParser, trial.Options{
		Preset:    a.cfg.EncoderPreset,
		Profile:   a.cfg.EncoderProfile,
		TuneSSIM:  a.cfg.TuneSSIM,
		FrameRate: demux.FrameRate(),
	})
	defer func() { _ = runner.Close() }()

	driver := search.NewDriver(a.cfg, smp, runner, unsharp.New(), a.scorer, a.rep)

	table, runErr := driver.Run(ctx)
	stats := driver.Stats()

	a.rep.RunComplete(reporter.RunSummary{
		GOPs:        table.Len(),
		TotalFrames: table.TotalFrames(),
		Trials:      stats.Trials,
		Stage0Secs:  stats.Stage0.Seconds(),
		Stage1Secs:  stats.Stage1.Seconds(),
		Stage2Secs:  stats.Stage2.Seconds(),
		Interrupted: errors.IsInterrupted(runErr),
	})

	if a.cfg.JournalPath != "" && table.Len() > 0 {
		if err := table.SaveJournal(a.cfg.JournalPath); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Table:      table,
		Stats:      stats,
		Validation: validation.ValidateTable(tableView{table}, table.Len(), table.TotalFrames()),
	}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// tableView adapts gop.Table to the validator's read interface.
type tableView struct {
	t *gop.Table
}

func (v tableView) Len() int         { return v.t.Len() }
func (v tableView) TotalFrames() int { return v.t.TotalFrames() }

func (v tableView) RecordAt(g int) (int, float64, float64, float64, int) {
	r := v.t.Record(g)
	return r.FrameCount, r.Unsharpen, r.AQStrength, r.TargetQuality, r.CRF
}

// Re-exported types for library consumers.
type (
	// Record is one GOP's chosen parameters.
	Record = gop.Record
	// Table is the per-GOP parameter table.
	Table = gop.Table
)

// LoadJournal reads a previously written parameter journal, for final
// pass processes consuming the table separately.
func LoadJournal(path string) (*Table, error) {
	return gop.LoadJournal(path)
}

// Geometry re-exports the frame geometry type used by backends.
type Geometry = raw.Geometry
