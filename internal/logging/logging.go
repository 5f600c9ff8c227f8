package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLog owns the timestamped log file of one analysis run. Setup
// installs the file as the process-wide structured log sink, so the
// driver's slog records and the CLI's run notes land in one place; the
// printf-style helpers exist for callers that format free-form notes.
type RunLog struct {
	logger   *Logger
	file     *os.File
	filePath string
}

// Setup creates the run log file under logDir and installs it as the
// global structured log sink. Returns nil with no side effects if
// logging is disabled (noLog=true); the global logger then keeps its
// stderr default.
func Setup(logDir string, verbose, noLog bool) (*RunLog, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filePath := filepath.Join(logDir, fmt.Sprintf("gopq_analyze_run_%s.log", timestamp))

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	level := LevelInfo
	if verbose {
		level = LevelDebug
	}

	logger := New(Config{Level: level, Output: file, Enabled: true})
	SetGlobal(logger)

	l := &RunLog{
		logger:   logger,
		file:     file,
		filePath: filePath,
	}
	l.logger.Info("analyzer starting", "log_file", filePath, "verbose", verbose)

	return l, nil
}

// Close closes the log file.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FilePath returns the path to the log file.
func (l *RunLog) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Info logs a formatted info-level run note.
func (l *RunLog) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Debug logs a formatted debug-level run note (dropped unless verbose).
func (l *RunLog) Debug(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Warn logs a formatted warning.
func (l *RunLog) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs a formatted error.
func (l *RunLog) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Error(fmt.Sprintf(format, args...))
}
