// Package config provides configuration types and defaults for gopq.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrMissingInput indicates no input path was provided.
	ErrMissingInput = errors.New("missing input")

	// ErrInvalidMinGOP indicates a non-positive minimum GOP length.
	ErrInvalidMinGOP = errors.New("min-gop out of range")

	// ErrInvalidSampleSize indicates an unusable sample frame count.
	ErrInvalidSampleSize = errors.New("sample size out of range")

	// ErrInvalidThreshold indicates an unusable stage-1 marginal threshold.
	ErrInvalidThreshold = errors.New("marginal threshold out of range")

	// ErrInvalidStride indicates a scorer subsample stride below 1.
	ErrInvalidStride = errors.New("subsample stride out of range")
)
