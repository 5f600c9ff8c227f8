// Package search drives the per-GOP two-stage parameter search: pick an
// unsharpen amount, pick a target quality on the unfiltered sample, then
// pick the cheapest CRF that reaches the target on the filtered sample.
package search

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gopq/gopq/internal/analysis"
	"github.com/gopq/gopq/internal/codec"
	"github.com/gopq/gopq/internal/config"
	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/gop"
	"github.com/gopq/gopq/internal/logging"
	"github.com/gopq/gopq/internal/quality"
	"github.com/gopq/gopq/internal/raw"
	"github.com/gopq/gopq/internal/reporter"
	"github.com/gopq/gopq/internal/sampler"
	"github.com/gopq/gopq/internal/trial"
)

// SampleSource yields GOP samples in demux order.
type SampleSource interface {
	Next() (*sampler.GOPSample, error)
	FrameRate() float64
}

// Trials runs encode-decode probes.
type Trials interface {
	BeginGOP()
	Run(sample *raw.Sample, sendFrames, crf int, aqStrength float64, recon *raw.Sample) (trial.Result, error)
}

// Filter applies the unsharpen pre-filter.
type Filter interface {
	Apply(dst, src *raw.Sample, amount float64) error
}

// Stats accumulates per-stage wall time across a run.
type Stats struct {
	Stage0 time.Duration
	Stage1 time.Duration
	Stage2 time.Duration
	GOPs   int
	Trials int
}

// Driver owns the per-GOP search state machines and the parameter table.
type Driver struct {
	cfg    *config.Config
	source SampleSource
	trials Trials
	filter Filter
	scorer quality.Scorer
	rep    reporter.Reporter

	// Scratch buffers reused across GOPs. Only the driver writes to
	// them; collaborators receive views.
	filtered  *raw.Sample
	stage2src *raw.Sample
	recon     *raw.Sample
	reference *raw.Sample

	stats Stats
}

// NewDriver wires a search driver over its collaborators.
func NewDriver(cfg *config.Config, source SampleSource, trials Trials, filter Filter, scorer quality.Scorer, rep reporter.Reporter) *Driver {
	if rep == nil {
		rep = reporter.Null{}
	}
	return &Driver{
		cfg:    cfg,
		source: source,
		trials: trials,
		filter: filter,
		scorer: scorer,
		rep:    rep,
	}
}

// Stats returns the accumulated run statistics.
func (d *Driver) Stats() Stats { return d.stats }

// Run analyzes every GOP of the input and returns the parameter table.
// On interruption the table holds only fully decided GOPs; the in-flight
// GOP is discarded.
func (d *Driver) Run(ctx context.Context) (*gop.Table, error) {
	table := gop.NewTable()

	for {
		if err := interrupted(ctx); err != nil {
			return table, err
		}

		gs, err := d.source.Next()
		if stderrors.Is(err, codec.ErrEndOfStream) {
			return table, nil
		}
		if err != nil {
			return table, err
		}

		rec, err := d.analyzeGOP(ctx, gs)
		if err != nil {
			return table, err
		}

		table.Append(*rec)
		d.stats.GOPs++
		d.rep.GOPComplete(table.Len()-1, *rec)
	}
}

// analyzeGOP runs stages 0-2 for one GOP sample and builds its record.
func (d *Driver) analyzeGOP(ctx context.Context, gs *sampler.GOPSample) (*gop.Record, error) {
	log := logging.Global().WithGOP(d.stats.GOPs)
	d.rep.GOPStarted(d.stats.GOPs, gs.FrameCount, gs.Geom.String())

	d.ensureBuffers(gs.Geom)
	d.trials.BeginGOP()

	aq := analysis.AQStrength(gs.Sharpness)
	hint := analysis.UnsharpenHint(gs.Sharpness)
	log.Debug("sharpness analyzed", "sharpness", gs.Sharpness, "aq", aq, "hint", hint)

	ref, err := d.referenceFor(ctx, gs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	amount, err := d.stage0(ctx, gs, ref, hint)
	d.stats.Stage0 += time.Since(start)
	if err != nil {
		return nil, err
	}
	log.Debug("unsharpen chosen", "amount", amount)

	start = time.Now()
	target, err := d.stage1(ctx, gs, ref)
	d.stats.Stage1 += time.Since(start)
	if err != nil {
		return nil, err
	}
	log.Debug("target quality chosen", "target", target)

	start = time.Now()
	crf, err := d.stage2(ctx, gs, amount, target)
	d.stats.Stage2 += time.Since(start)
	if err != nil {
		return nil, err
	}
	log.Debug("final crf chosen", "crf", crf)

	return &gop.Record{
		FrameCount:    gs.FrameCount,
		Unsharpen:     amount,
		AQStrength:    aq,
		TargetQuality: target,
		CRF:           crf,
	}, nil
}

// referenceFor picks the near-lossless reference for stages 0 and 1: the
// decoded input itself, or optionally a CRF-5 pre-encode of it.
func (d *Driver) referenceFor(ctx context.Context, gs *sampler.GOPSample) (*raw.Sample, error) {
	if !d.cfg.CRF5Reference {
		return gs.Sample, nil
	}
	if err := interrupted(ctx); err != nil {
		return nil, err
	}
	d.stats.Trials++
	if _, err := d.trials.Run(gs.Sample, gs.Sample.Frames(), 5, 0, d.reference); err != nil {
		return nil, err
	}
	return d.reference, nil
}

// ensureBuffers sizes the scratch samples for the current geometry.
func (d *Driver) ensureBuffers(geom raw.Geometry) {
	if d.filtered == nil {
		d.filtered = raw.NewSample(geom, d.cfg.SampleFrames)
		d.stage2src = raw.NewSample(geom, d.cfg.SampleFrames)
		d.recon = raw.NewSample(geom, d.cfg.SampleFrames)
		d.reference = raw.NewSample(geom, d.cfg.SampleFrames)
		return
	}
	d.filtered.Reset(geom)
	d.stage2src.Reset(geom)
	d.recon.Reset(geom)
	d.reference.Reset(geom)
}

// score runs the quality scorer over the last tail frames both samples
// hold.
func (d *Driver) score(ref, dis *raw.Sample) (float64, error) {
	total := ref.Frames()
	if dis.Frames() < total {
		total = dis.Frames()
	}
	from, to := quality.TailRange(total, config.DefaultScoreTail)
	return d.scorer.Score(ref, dis, from, to, d.cfg.SubsampleStride)
}

func interrupted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.NewInterruptedError()
	default:
		return nil
	}
}

func clampQuality(q float64) float64 {
	if q > config.TargetQualityMax {
		return config.TargetQualityMax
	}
	if q < config.TargetQualityMin {
		return config.TargetQualityMin
	}
	return q
}
