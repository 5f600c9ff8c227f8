// Package main provides the CLI entry point for gopq.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/gopq/gopq"
	"github.com/gopq/gopq/internal/config"
	"github.com/gopq/gopq/internal/discovery"
	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/ffprobe"
	"github.com/gopq/gopq/internal/logging"
	"github.com/gopq/gopq/internal/reporter"
	"github.com/gopq/gopq/internal/util"
)

const (
	appName    = "gopq"
	appVersion = "0.1.0"

	// exitInterrupted mirrors the shell convention for SIGINT.
	exitInterrupted = 130

	// memFraction is how much of available memory the pixel buffers may
	// claim before a warning is emitted.
	memFraction = 0.7
)

type analyzeArgs struct {
	inputPath       string
	journalPath     string
	logDir          string
	minGOP          int
	sampleSize      int
	threshold       float64
	targetTolerance bool
	crf5Reference   bool
	modelPath       string
	scorerName      string
	jsonOutput      bool
	verbose         bool
	noLog           bool
}

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Per-GOP perceptual quality analysis for video transcoding",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())

	if err := root.Execute(); err != nil {
		if errors.IsInterrupted(err) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(exitInterrupted)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var ea analyzeArgs

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an input and emit a per-GOP parameter journal",
		Long: `Analyze decodes the input GOP by GOP, probes each sample with trial
encodes, and writes one journal line per GOP holding the chosen
unsharpen amount, AQ strength, target quality, and CRF for the final
encoding pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), ea)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&ea.inputPath, "input", "i", "", "input video file or directory")
	flags.StringVarP(&ea.journalPath, "journal", "j", "", "journal output path (default: <input>.gopq)")
	flags.StringVarP(&ea.logDir, "log-dir", "l", "", "log directory (default: ~/.local/state/gopq/logs)")
	flags.IntVar(&ea.minGOP, "min-gop", config.DefaultMinGOPFrames, "minimum frames before a keyframe closes a GOP")
	flags.IntVar(&ea.sampleSize, "sample-size", config.DefaultSampleFrames, "frames retained per GOP sample")
	flags.Float64Var(&ea.threshold, "marginal-threshold", config.DefaultMarginalThreshold, "stage-1 knee threshold (kb/s per quality point)")
	flags.BoolVar(&ea.targetTolerance, "target-tolerance", false, "lower the stage-2 target by 2 when it stays >= 91")
	flags.BoolVar(&ea.crf5Reference, "crf5-reference", false, "score against a near-lossless pre-encode instead of the decoded input")
	flags.StringVar(&ea.modelPath, "model-path", "", "quality model path for native scorer backends")
	flags.StringVar(&ea.scorerName, "scorer", defaultScorerName, "quality scorer backend ("+scorerNames+")")
	flags.BoolVar(&ea.jsonOutput, "json", false, "emit machine-readable JSON events instead of terminal output")
	flags.BoolVarP(&ea.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&ea.noLog, "no-log", false, "disable log file creation")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runAnalyze(ctx context.Context, ea analyzeArgs) error {
	inputPath, err := filepath.Abs(ea.inputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input path does not exist: %s", inputPath)
	}

	logDir := ea.logDir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".local", "state", appName, "logs")
	}

	fileLog, err := logging.Setup(logDir, ea.verbose, ea.noLog)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer func() { _ = fileLog.Close() }()

	var filesToProcess []string
	if inputInfo.IsDir() {
		result, err := discovery.FindVideoFilesWithLogging(inputPath, fileLog)
		if err != nil {
			return err
		}
		filesToProcess = result.Files
	} else {
		filesToProcess = []string{inputPath}
	}

	scorer, err := buildScorer(ea.scorerName, ea.modelPath)
	if err != nil {
		return err
	}

	var rep reporter.Reporter
	if ea.jsonOutput {
		rep = reporter.NewJSON(os.Stdout)
	} else {
		rep = reporter.NewTerminal()
	}

	ctx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()

	for _, file := range filesToProcess {
		journal := ea.journalPath
		if journal == "" || len(filesToProcess) > 1 {
			journal = filepath.Join(filepath.Dir(file), util.GetFileStem(file)+".gopq")
		}

		if err := analyzeFile(ctx, ea, file, journal, scorer, rep, fileLog); err != nil {
			return err
		}
	}

	return nil
}

func analyzeFile(ctx context.Context, ea analyzeArgs, file, journal string, scorer scorerBackend, rep reporter.Reporter, fileLog *logging.RunLog) error {
	checkMemory(ea, file, rep)

	analyzer, err := gopq.New(file,
		gopq.WithMinGOP(ea.minGOP),
		gopq.WithSampleFrames(ea.sampleSize),
		gopq.WithMarginalThreshold(ea.threshold),
		gopq.WithTargetTolerance(ea.targetTolerance),
		gopq.WithCRF5Reference(ea.crf5Reference),
		gopq.WithModelPath(ea.modelPath),
		gopq.WithJournal(journal),
		gopq.WithScorer(scorer),
		gopq.WithReporter(rep),
	)
	if err != nil {
		return err
	}

	rep.RunStarted(reporter.RunInfo{
		InputFile:   util.GetFilename(file),
		JournalFile: journal,
		MinGOP:      ea.minGOP,
		SampleSize:  ea.sampleSize,
		Threshold:   ea.threshold,
	})
	fileLog.Info("Analyzing %s -> %s", file, journal)

	res, err := analyzer.Analyze(ctx)
	if err != nil {
		if errors.IsInterrupted(err) && res != nil {
			fileLog.Warn("Interrupted after %d GOPs", res.Table.Len())
		}
		return err
	}

	for _, step := range res.Validation.Failures() {
		rep.Warning(fmt.Sprintf("%s: %s", step.Name, step.Details))
		fileLog.Warn("Validation failed: %s: %s", step.Name, step.Details)
	}

	if info, err := os.Stat(journal); err == nil {
		fileLog.Info("Journal written: %s (%s)", journal, util.FormatBytes(uint64(info.Size())))
	}
	return nil
}

// checkMemory warns when the pixel buffers for this input may not fit in
// available memory.
func checkMemory(ea analyzeArgs, file string, rep reporter.Reporter) {
	info, err := ffprobe.GetStreamInfo(file)
	if err != nil {
		return
	}
	need := util.SampleMemoryBytes(info.Width, info.Height, ea.sampleSize)
	if !util.EnoughMemory(need, memFraction) {
		rep.Warning(fmt.Sprintf("pixel buffers need %s, which may exceed available memory",
			util.FormatBytes(need)))
	}
}
