package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/vidscribe/internal/config"
)

func TestConsoleLoggerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeFn()

	logger.With("run", "abc").Info("audio extracted", "sample_rate", 44100, "path", "my file.wav", "took", 1500*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"INFO", "audio extracted", "run=abc", "sample_rate=44100", `path="my file.wav"`, "took=1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output %q contains records below warn", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown") {
		t.Errorf("output %q missing warn record", out)
	}
}

func TestConsoleLoggerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeFn()

	logger.WithGroup("denoise").Debug("done", "method", "butter")
	if !strings.Contains(buf.String(), "denoise.method=butter") {
		t.Errorf("output %q missing grouped attr", buf.String())
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeFn()

	logger.Info("transcribed", "chars", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "transcribed" {
		t.Errorf("msg = %v, want %q", rec["msg"], "transcribed")
	}
	if rec["chars"] != float64(42) {
		t.Errorf("chars = %v, want 42", rec["chars"])
	}
}

func TestLoggerMirrorsToFile(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "vidscribe.log")
	logger, closeFn, err := New(Options{Level: "info", Writer: &buf, File: logPath})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hello file")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file %q missing record", data)
	}
	if !strings.Contains(buf.String(), "hello file") {
		t.Errorf("writer %q missing record", buf.String())
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"

	var buf bytes.Buffer
	logger, closeFn, err := NewFromConfig(cfg, &buf)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer closeFn()

	logger.Info("quiet")
	logger.Warn("loud", "stage", "clean")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "loud" || rec["stage"] != "clean" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewFromNilConfig(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := NewFromConfig(nil, &buf)
	if err != nil {
		t.Fatalf("NewFromConfig(nil) error = %v", err)
	}
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q, want info level console output", out)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("New() should fail for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(t.Context(), 8) {
		t.Error("nop logger should not be enabled for error level")
	}
}
