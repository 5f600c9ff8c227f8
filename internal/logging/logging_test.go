package logging

import (
	"os"
	"strings"
	"testing"
)

func TestSetupWritesRunFile(t *testing.T) {
	dir := t.TempDir()

	l, err := Setup(dir, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()

	if !strings.Contains(l.FilePath(), "gopq_analyze_run_") {
		t.Errorf("unexpected log file name %q", l.FilePath())
	}

	l.Info("analyzed %d gops", 3)
	l.Debug("dropped at info level")
	l.Warn("partial gop at eof")

	data, err := os.ReadFile(l.FilePath())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "analyzed 3 gops") {
		t.Error("info note missing from run file")
	}
	if !strings.Contains(content, "partial gop at eof") {
		t.Error("warning missing from run file")
	}
	if strings.Contains(content, "dropped at info level") {
		t.Error("debug note should be filtered without verbose")
	}

	// Setup installed the run file as the global sink.
	Info("driver record", "gop", 0)
	data, _ = os.ReadFile(l.FilePath())
	if !strings.Contains(string(data), "driver record") {
		t.Error("global structured logs should reach the run file")
	}
}

func TestSetupDisabled(t *testing.T) {
	l, err := Setup(t.TempDir(), false, true)
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Fatal("noLog should return a nil run log")
	}

	// All helpers are nil-safe.
	l.Info("ignored")
	l.Debug("ignored")
	l.Warn("ignored")
	l.Error("ignored")
	if l.FilePath() != "" {
		t.Error("nil run log has no file path")
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil Close should succeed, got %v", err)
	}
}
