//go:build vmaf

package main

import (
	"fmt"
	"runtime"

	"github.com/gopq/gopq/internal/quality"
	"github.com/gopq/gopq/internal/vmaf"
)

const (
	defaultScorerName = "vmaf"
	scorerNames       = "psnr, vmaf"
)

type scorerBackend = quality.Scorer

func buildScorer(name, modelPath string) (scorerBackend, error) {
	switch name {
	case "psnr":
		return quality.NewPSNR(), nil
	case "vmaf":
		if modelPath == "" {
			return nil, fmt.Errorf("scorer vmaf requires --model-path")
		}
		return vmaf.New(modelPath, runtime.NumCPU()), nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", name)
	}
}
