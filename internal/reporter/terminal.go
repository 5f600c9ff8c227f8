package reporter

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/gopq/gopq/internal/gop"
	"github.com/gopq/gopq/internal/util"
)

// Terminal outputs human-friendly text to the terminal.
type Terminal struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	bold     *color.Color
}

// NewTerminal creates a new terminal reporter.
func NewTerminal() *Terminal {
	return &Terminal{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
func (r *Terminal) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *Terminal) RunStarted(info RunInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("ANALYZE")
	r.printLabel(10, "Input:", info.InputFile)
	if info.JournalFile != "" {
		r.printLabel(10, "Journal:", info.JournalFile)
	}
	r.printLabel(10, "Min GOP:", fmt.Sprintf("%d frames", info.MinGOP))
	r.printLabel(10, "Sample:", fmt.Sprintf("%d frames", info.SampleSize))
	r.printLabel(10, "Knee:", fmt.Sprintf("%.0f kb/s per point", info.Threshold))
	fmt.Println()

	r.mu.Lock()
	// GOP count is unknown until EOF; run an indeterminate spinner.
	r.progress = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
	)
	r.mu.Unlock()
}

func (r *Terminal) GOPStarted(gopIdx int, frameCount int, geometry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		r.progress.Describe(fmt.Sprintf("gop %d (%d frames, %s)", gopIdx, frameCount, geometry))
	}
}

func (r *Terminal) GOPComplete(gopIdx int, rec gop.Record) {
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Add(1)
	}
	r.mu.Unlock()
	fmt.Printf("\r  gop %-4d crf=%-2d unsharpen=%.1f aq=%.2f target=%.1f frames=%d\n",
		gopIdx, rec.CRF, rec.Unsharpen, rec.AQStrength, rec.TargetQuality, rec.FrameCount)
}

func (r *Terminal) Warning(message string) {
	_, _ = r.yellow.Printf("  Warning: %s\n", message)
}

func (r *Terminal) Error(err RunError) {
	fmt.Println()
	_, _ = r.red.Printf("%s: %s\n", err.Title, err.Message)
	if err.Context != "" {
		fmt.Printf("  %s\n", err.Context)
	}
	if err.Suggestion != "" {
		fmt.Printf("  %s\n", err.Suggestion)
	}
}

func (r *Terminal) RunComplete(summary RunSummary) {
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.mu.Unlock()

	fmt.Println()
	if summary.Interrupted {
		_, _ = r.yellow.Println("INTERRUPTED")
	} else {
		_, _ = r.cyan.Println("COMPLETE")
	}
	r.printLabel(10, "GOPs:", fmt.Sprintf("%d", summary.GOPs))
	r.printLabel(10, "Frames:", fmt.Sprintf("%d", summary.TotalFrames))
	r.printLabel(10, "Trials:", fmt.Sprintf("%d", summary.Trials))
	r.printLabel(10, "Unsharpen:", util.FormatDuration(summary.Stage0Secs))
	r.printLabel(10, "Target:", util.FormatDuration(summary.Stage1Secs))
	r.printLabel(10, "CRF:", util.FormatDuration(summary.Stage2Secs))
	fmt.Println()

	if summary.Interrupted {
		_, _ = r.yellow.Println("Run interrupted; partial journal kept for completed GOPs.")
	} else {
		_, _ = r.green.Println("Analysis complete.")
	}
}
