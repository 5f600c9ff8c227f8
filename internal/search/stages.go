package search

import (
	"context"
	"math"

	"github.com/gopq/gopq/internal/config"
	"github.com/gopq/gopq/internal/logging"
	"github.com/gopq/gopq/internal/raw"
	"github.com/gopq/gopq/internal/sampler"
	"github.com/gopq/gopq/internal/unsharp"
)

// stage0 grid-searches the unsharpen amount. Amounts are probed in
// increasing order at a fixed CRF; the walk stops when quality stops
// improving (keeping the previous amount) or once the amount passes the
// sharpness-derived hint (keeping the current one).
func (d *Driver) stage0(ctx context.Context, gs *sampler.GOPSample, ref *raw.Sample, hint float64) (float64, error) {
	log := logging.Global().WithStage("unsharpen")

	prevScore := 0.0
	chosen := unsharp.Amounts[len(unsharp.Amounts)-1]

	for i, amount := range unsharp.Amounts {
		if err := interrupted(ctx); err != nil {
			return 0, err
		}

		if err := d.filter.Apply(d.filtered, gs.Sample, amount); err != nil {
			return 0, err
		}

		d.stats.Trials++
		res, err := d.trials.Run(d.filtered, d.filtered.Frames(), config.DefaultUnsharpTrialCRF, 0, d.recon)
		if err != nil {
			return 0, err
		}

		score, err := d.score(ref, res.Recon)
		if err != nil {
			return 0, err
		}
		log.Debug("probe", "amount", amount, "score", score)

		// A non-improving score ends the walk: equality means the mask
		// bought nothing, as on flat content.
		if i > 0 && score <= prevScore {
			chosen = unsharp.Amounts[i-1]
			break
		}
		if amount > hint {
			chosen = amount
			break
		}
		prevScore = score
	}

	return chosen, nil
}

// stage1 sweeps CRF upward on the unfiltered sample and picks the target
// quality at the knee of the rate-quality curve: the first point where
// spending more bits buys less than the marginal threshold per quality
// point.
func (d *Driver) stage1(ctx context.Context, gs *sampler.GOPSample, ref *raw.Sample) (float64, error) {
	log := logging.Global().WithStage("target")

	fps := d.source.FrameRate()
	seconds := float64(d.cfg.SampleFrames-2) / fps

	var prevBitrate, prevScore float64
	first := true

	for crf := config.CRFMin; crf <= config.CRFMax; crf++ {
		if err := interrupted(ctx); err != nil {
			return 0, err
		}

		d.stats.Trials++
		res, err := d.trials.Run(gs.Sample, gs.Sample.Frames(), crf, 0, d.recon)
		if err != nil {
			return 0, err
		}

		score, err := d.score(ref, res.Recon)
		if err != nil {
			return 0, err
		}
		bitrate := float64(res.EncodedBytes) * 8 / seconds / 1024

		// The first probe has no neighbor; a fabricated large marginal
		// cost keeps the loop from stopping on a single point. The same
		// guard covers a flat quality step, which would divide by zero.
		marginal := config.BootstrapMarginalCost
		if !first && math.Abs(score-prevScore) > 1e-6 {
			marginal = (bitrate - prevBitrate) / (score - prevScore)
		}
		first = false

		log.Debug("probe", "crf", crf, "score", score, "bitrate", bitrate, "marginal", marginal)

		if marginal <= d.cfg.MarginalThreshold || crf == config.CRFMax {
			return clampQuality(score), nil
		}

		prevBitrate = bitrate
		prevScore = score
	}

	// Unreachable: the sweep returns at CRFMax.
	return config.TargetQualityMin, nil
}

// stage2 searches the final CRF on the unsharpened sample with an
// adaptive step: far from the target it takes coarse steps scaled by the
// quality gap, near it single steps. Most stops return the probed CRF
// plus one; when a probe below the target is followed by a downward
// step, the walk ends on the stepped-to CRF plus one without probing it.
func (d *Driver) stage2(ctx context.Context, gs *sampler.GOPSample, amount, target float64) (int, error) {
	log := logging.Global().WithStage("crf")

	if err := d.filter.Apply(d.filtered, gs.Sample, amount); err != nil {
		return 0, err
	}
	d.stage2src.CopyFrom(d.filtered)
	d.stage2src.Truncate(d.cfg.Stage2Frames)

	if d.cfg.TargetTolerance && target-2 >= 91 {
		target -= 2
	}

	fps := d.source.FrameRate()
	seconds := float64(d.cfg.Stage2Receive) / fps

	const start = config.CRFMin
	crf := start
	last := start

	bestBitrate := math.Inf(1)
	bestCRF := start
	haveBest := false

	for {
		if err := interrupted(ctx); err != nil {
			return 0, err
		}

		d.stats.Trials++
		// Only the first K-4 frames of the shortened sample go through
		// each trial; the rest is codec warm-up budget.
		res, err := d.trials.Run(d.stage2src, d.cfg.Stage2Receive, crf, 0, d.recon)
		if err != nil {
			return 0, err
		}

		score, err := d.score(d.stage2src, res.Recon)
		if err != nil {
			return 0, err
		}
		bitrate := float64(res.EncodedBytes) * 8 / seconds / 1024
		diff := score - target
		log.Debug("probe", "crf", crf, "score", score, "bitrate", bitrate, "diff", diff)

		// Track the cheapest probe inside the tolerance band.
		if (diff > -1 && bitrate < bestBitrate) || !haveBest {
			bestBitrate = bitrate
			bestCRF = crf
			haveBest = true
		}

		if math.Abs(diff) < 1 && diff < 0.2 {
			log.Debug("converged", "crf", crf, "best", bestCRF)
			return crf + 1, nil
		}

		anchor := float64(crf-18) / 10.0
		if anchor < 0.2 {
			anchor = 0.2
		}
		var stepQ float64
		switch {
		case diff > 20:
			stepQ = 1.5 * anchor
		case diff > 15:
			stepQ = 2 * anchor
		case diff > 10:
			stepQ = 2.5 * anchor
		default:
			stepQ = 4 * anchor
		}
		if stepQ < 1 {
			stepQ = 1
		}

		var step float64
		if diff > 0 {
			step = diff / stepQ
			if step < 1 {
				step = 1
			}
			if crf < last {
				// Already stepped below a probed CRF once; going back up
				// would oscillate.
				return crf + 1, nil
			}
		} else {
			if crf == last+1 || crf == start || crf == last-1 {
				return crf + 1, nil
			}
			step = diff / stepQ
			if step > -1 {
				step = -1
			}
		}

		if step > 5 {
			step = 5
		}
		if step < -2 {
			step = -2
		}
		if step < 0 {
			step = math.Trunc(step)
		}

		last = crf
		if float64(crf)+step > config.Stage2CRFCap {
			return crf + 1, nil
		}
		crf = int(float64(crf) + step)

		if score < target {
			return crf + 1, nil
		}
	}
}
