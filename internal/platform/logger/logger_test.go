package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afya.log")
	log, err := New(LogConfig{Level: "debug", Format: FormatJSON, OutputPath: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug("record created")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"record created"`) {
		t.Fatalf("expected json entry, got %s", data)
	}
}

func TestNewLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afya.log")
	log, err := New(LogConfig{Level: "warn", Format: FormatConsole, OutputPath: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Fatalf("unexpected log content %s", data)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := New(LogConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
	if _, err := New(LogConfig{}); err != nil {
		t.Fatalf("defaults should build: %v", err)
	}
}
