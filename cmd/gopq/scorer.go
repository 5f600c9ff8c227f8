//go:build !vmaf

package main

import (
	"fmt"

	"github.com/gopq/gopq/internal/quality"
)

const (
	defaultScorerName = "psnr"
	scorerNames       = "psnr"
)

type scorerBackend = quality.Scorer

// buildScorer resolves the scorer flag. The vmaf backend requires a
// build with the vmaf tag and the native library installed.
func buildScorer(name, modelPath string) (scorerBackend, error) {
	switch name {
	case "psnr":
		return quality.NewPSNR(), nil
	case "vmaf":
		return nil, fmt.Errorf("scorer %q requires a build with the vmaf tag", name)
	default:
		return nil, fmt.Errorf("unknown scorer %q", name)
	}
}
