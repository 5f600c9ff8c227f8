// Package config provides configuration types and defaults for gopq.
package config

import "fmt"

// Default constants
const (
	// DefaultMinGOPFrames is the minimum decoded frame count before a new
	// keyframe is allowed to close the current GOP.
	DefaultMinGOPFrames = 300

	// DefaultSampleFrames is the number of decoded frames retained per
	// GOP sample.
	DefaultSampleFrames = 50

	// DefaultStage2Frames is the shortened sample length used by the
	// stage-2 sweep.
	DefaultStage2Frames = 10

	// DefaultStage2Receive is how many frames of the shortened stage-2
	// sample each trial actually sends and receives, skipping codec
	// warm-up frames.
	DefaultStage2Receive = DefaultStage2Frames - 4

	// DefaultScoreTail is how many trailing frames of a sample the
	// quality scorer reads.
	DefaultScoreTail = 5

	// DefaultUnsharpTrialCRF is the fixed CRF used while grid-searching
	// the unsharpen amount.
	DefaultUnsharpTrialCRF = 23

	// DefaultMarginalThreshold is the stage-1 stop condition: the sweep
	// ends once the marginal cost dbitrate/dquality falls to or below it.
	DefaultMarginalThreshold = 400.0

	// BootstrapMarginalCost is the fabricated marginal cost for the first
	// trial of a GOP; any value strictly above the threshold works.
	BootstrapMarginalCost = 600.0

	// CRFMin and CRFMax bound the stage-1 sweep.
	CRFMin = 18
	CRFMax = 50

	// Stage2CRFCap is the hard stage-2 ceiling; stepping past it accepts
	// the current CRF plus one.
	Stage2CRFCap = 40

	// TargetQualityMin and TargetQualityMax clamp the stage-1 chosen
	// quality score.
	TargetQualityMin = 90.0
	TargetQualityMax = 96.0

	// DefaultSubsampleStride is the scorer frame subsampling stride.
	DefaultSubsampleStride = 1

	// DefaultEncoderPreset and DefaultEncoderProfile select the trial
	// encoder profile.
	DefaultEncoderPreset  = "medium"
	DefaultEncoderProfile = "high"
)

// Config holds all configuration for a per-GOP analysis run.
type Config struct {
	// Input/output paths
	InputPath   string
	JournalPath string
	LogDir      string

	// Sampler settings
	MinGOPFrames int
	SampleFrames int

	// Stage-1 settings
	MarginalThreshold float64

	// Stage-2 settings
	Stage2Frames int
	// Stage2Receive is the per-trial send/receive frame count within the
	// shortened stage-2 sample.
	Stage2Receive int
	// TargetTolerance lowers the stage-2 target by two points when the
	// lowered target stays at or above 91.
	TargetTolerance bool

	// Trial encoder settings
	EncoderPreset  string
	EncoderProfile string
	TuneSSIM       bool

	// Scorer settings
	ModelPath       string
	SubsampleStride int

	// CRF5Reference switches stage 0/1 to score against a near-lossless
	// pre-encode instead of the decoded input.
	CRF5Reference bool

	// Debug options
	Verbose bool
	NoLog   bool
}

// NewConfig creates a new Config with default values.
func NewConfig(inputPath string) *Config {
	return &Config{
		InputPath:         inputPath,
		MinGOPFrames:      DefaultMinGOPFrames,
		SampleFrames:      DefaultSampleFrames,
		MarginalThreshold: DefaultMarginalThreshold,
		Stage2Frames:      DefaultStage2Frames,
		Stage2Receive:     DefaultStage2Receive,
		EncoderPreset:     DefaultEncoderPreset,
		EncoderProfile:    DefaultEncoderProfile,
		TuneSSIM:          true,
		SubsampleStride:   DefaultSubsampleStride,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrMissingInput)
	}
	if c.MinGOPFrames < 1 {
		return fmt.Errorf("%w: min-gop must be at least 1, got %d", ErrInvalidMinGOP, c.MinGOPFrames)
	}
	if c.SampleFrames < 2 {
		return fmt.Errorf("%w: sample size must be at least 2, got %d", ErrInvalidSampleSize, c.SampleFrames)
	}
	if c.Stage2Frames < 5 || c.Stage2Frames > c.SampleFrames {
		return fmt.Errorf("%w: stage-2 sample must be 5..%d, got %d", ErrInvalidSampleSize, c.SampleFrames, c.Stage2Frames)
	}
	if c.Stage2Receive < 1 || c.Stage2Receive > c.Stage2Frames {
		return fmt.Errorf("%w: stage-2 receive count must be 1..%d, got %d", ErrInvalidSampleSize, c.Stage2Frames, c.Stage2Receive)
	}
	if c.MarginalThreshold <= 0 {
		return fmt.Errorf("%w: marginal threshold must be positive, got %g", ErrInvalidThreshold, c.MarginalThreshold)
	}
	if c.MarginalThreshold >= BootstrapMarginalCost {
		return fmt.Errorf("%w: marginal threshold must stay below the bootstrap cost %g, got %g",
			ErrInvalidThreshold, float64(BootstrapMarginalCost), c.MarginalThreshold)
	}
	if c.SubsampleStride < 1 {
		return fmt.Errorf("%w: subsample stride must be at least 1, got %d", ErrInvalidStride, c.SubsampleStride)
	}
	return nil
}
