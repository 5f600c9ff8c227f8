// Package discovery provides input file discovery for batch analysis.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gopq/gopq/internal/util"
)

// Logger defines the interface for discovery logging.
type Logger interface {
	Info(format string, args ...any)
	Debug(format string, args ...any)
}

// Result contains the results of file discovery with metadata.
type Result struct {
	Files        []string
	SkippedCount int
}

// FindVideoFiles finds video files in the given directory.
// Returns files sorted alphabetically by filename.
func FindVideoFiles(inputDir string) ([]string, error) {
	res, err := scan(inputDir)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// FindVideoFilesWithLogging finds video files and logs discovery progress.
// Logs the first 5 files found plus a count summary.
func FindVideoFilesWithLogging(inputDir string, logger Logger) (*Result, error) {
	res, err := scan(inputDir)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logDiscoveredFiles(res.Files, logger)
	}
	return res, nil
}

func scan(inputDir string) (*Result, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", inputDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", inputDir)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", inputDir, err)
	}

	result := &Result{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		fullPath := filepath.Join(inputDir, name)
		if util.IsVideoFile(fullPath) {
			result.Files = append(result.Files, fullPath)
		} else {
			result.SkippedCount++
		}
	}

	if len(result.Files) == 0 {
		return nil, fmt.Errorf("no video files found in %s", inputDir)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(result.Files[i])) < strings.ToLower(filepath.Base(result.Files[j]))
	})

	return result, nil
}

// logDiscoveredFiles logs the first 5 discovered files plus a count.
func logDiscoveredFiles(files []string, logger Logger) {
	logger.Info("Found %d video file(s)", len(files))

	maxToLog := min(5, len(files))
	for i := range maxToLog {
		logger.Debug("  %s", filepath.Base(files[i]))
	}
	if len(files) > 5 {
		logger.Debug("  ... and %d more", len(files)-5)
	}
}
