package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return cfgPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Tools.FFmpeg != "ffmpeg" {
		t.Errorf("Tools.FFmpeg = %q, want %q", cfg.Tools.FFmpeg, "ffmpeg")
	}
	if cfg.Extract.AudioStream != -1 {
		t.Errorf("Extract.AudioStream = %d, want -1", cfg.Extract.AudioStream)
	}
	if cfg.Denoise.Method != "noisereduce" {
		t.Errorf("Denoise.Method = %q, want %q", cfg.Denoise.Method, "noisereduce")
	}
	if cfg.Denoise.CutoffHz != 2000 || cfg.Denoise.Order != 4 {
		t.Errorf("Denoise butter = %g Hz order %d, want 2000 Hz order 4", cfg.Denoise.CutoffHz, cfg.Denoise.Order)
	}
	if cfg.Denoise.PropDecrease != 1.0 {
		t.Errorf("Denoise.PropDecrease = %g, want 1.0", cfg.Denoise.PropDecrease)
	}
	if cfg.Output.BitDepth != 16 {
		t.Errorf("Output.BitDepth = %d, want 16", cfg.Output.BitDepth)
	}
	if cfg.Transcribe.Backend != "whisper" {
		t.Errorf("Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "whisper")
	}
	if cfg.Transcribe.Model != "base" {
		t.Errorf("Transcribe.Model = %q, want %q", cfg.Transcribe.Model, "base")
	}
	if cfg.Transcribe.OpenAI.Model != "whisper-1" {
		t.Errorf("Transcribe.OpenAI.Model = %q, want %q", cfg.Transcribe.OpenAI.Model, "whisper-1")
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	cfgPath := writeConfig(t, `
tools:
  ffmpeg: /opt/bin/ffmpeg
denoise:
  method: butter
  cutoff_hz: 3000
output:
  bit_depth: 24
transcribe:
  backend: seq2seq
  model: tiny
  language: de
  threads: 2
log_level: debug
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tools.FFmpeg != "/opt/bin/ffmpeg" {
		t.Errorf("Tools.FFmpeg = %q, want %q", cfg.Tools.FFmpeg, "/opt/bin/ffmpeg")
	}
	if cfg.Tools.FFprobe != "ffprobe" {
		t.Errorf("Tools.FFprobe = %q, want default %q", cfg.Tools.FFprobe, "ffprobe")
	}
	if cfg.Denoise.Method != "butter" {
		t.Errorf("Denoise.Method = %q, want %q", cfg.Denoise.Method, "butter")
	}
	if cfg.Denoise.CutoffHz != 3000 {
		t.Errorf("Denoise.CutoffHz = %g, want 3000", cfg.Denoise.CutoffHz)
	}
	if cfg.Denoise.Order != 4 {
		t.Errorf("Denoise.Order = %d, want default 4", cfg.Denoise.Order)
	}
	if cfg.Output.BitDepth != 24 {
		t.Errorf("Output.BitDepth = %d, want 24", cfg.Output.BitDepth)
	}
	if cfg.Transcribe.Backend != "seq2seq" || cfg.Transcribe.Model != "tiny" {
		t.Errorf("Transcribe = %s/%s, want seq2seq/tiny", cfg.Transcribe.Backend, cfg.Transcribe.Model)
	}
	if cfg.Transcribe.Language != "de" {
		t.Errorf("Transcribe.Language = %q, want %q", cfg.Transcribe.Language, "de")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	cfgPath := writeConfig(t, `
transcribe:
  model_path: ~/models/test.bin
  models_dir: ~/models
log_file: ~/logs/vidscribe.log
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, "models/test.bin"); cfg.Transcribe.ModelPath != want {
		t.Errorf("Transcribe.ModelPath = %q, want %q", cfg.Transcribe.ModelPath, want)
	}
	if want := filepath.Join(home, "models"); cfg.Transcribe.ModelsDir != want {
		t.Errorf("Transcribe.ModelsDir = %q, want %q", cfg.Transcribe.ModelsDir, want)
	}
	if want := filepath.Join(home, "logs/vidscribe.log"); cfg.LogFile != want {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, want)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := writeConfig(t, "denoise: [unterminated")
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should return error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"empty ffmpeg", func(c *Config) { c.Tools.FFmpeg = "" }, true},
		{"empty ffprobe", func(c *Config) { c.Tools.FFprobe = "" }, true},
		{"unknown denoise method", func(c *Config) { c.Denoise.Method = "wiener" }, true},
		{"butter method", func(c *Config) { c.Denoise.Method = "butter" }, false},
		{"none method", func(c *Config) { c.Denoise.Method = "none" }, false},
		{"prop decrease above one", func(c *Config) { c.Denoise.PropDecrease = 1.5 }, true},
		{"n_fft not power of two", func(c *Config) { c.Denoise.NFFT = 1000 }, true},
		{"odd filter order", func(c *Config) { c.Denoise.Order = 3 }, true},
		{"zero cutoff", func(c *Config) { c.Denoise.CutoffHz = 0 }, true},
		{"bit depth 8", func(c *Config) { c.Output.BitDepth = 8 }, true},
		{"unknown backend", func(c *Config) { c.Transcribe.Backend = "invalid" }, true},
		{"whisper without model", func(c *Config) { c.Transcribe.Model = ""; c.Transcribe.ModelPath = "" }, true},
		{"whisper with model path only", func(c *Config) { c.Transcribe.Model = ""; c.Transcribe.ModelPath = "/m.bin" }, false},
		{"openai backend", func(c *Config) { c.Transcribe.Backend = "openai"; c.Transcribe.Model = "" }, false},
		{"openai without model", func(c *Config) { c.Transcribe.Backend = "openai"; c.Transcribe.OpenAI.Model = "" }, true},
		{"zero threads", func(c *Config) { c.Transcribe.Threads = 0 }, true},
		{"zero max tokens", func(c *Config) { c.Transcribe.MaxTokens = 0 }, true},
		{"negative silence threshold", func(c *Config) { c.Transcribe.SilenceThreshold = -1 }, true},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Audio.Channels = 0 }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := Default()
	if got := cfg.OpenAIKey(); got != "sk-env" {
		t.Errorf("OpenAIKey() = %q, want %q", got, "sk-env")
	}

	cfg.Transcribe.OpenAI.APIKey = "sk-config"
	if got := cfg.OpenAIKey(); got != "sk-config" {
		t.Errorf("OpenAIKey() = %q, want %q", got, "sk-config")
	}
}

func TestLoadEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("VIDSCRIBE_TEST_KEY=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIDSCRIBE_TEST_KEY", "")
	os.Unsetenv("VIDSCRIBE_TEST_KEY")

	if err := LoadEnv(envPath); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("VIDSCRIBE_TEST_KEY"); got != "from-file" {
		t.Errorf("VIDSCRIBE_TEST_KEY = %q, want %q", got, "from-file")
	}
}

func TestLoadEnvMissingFileIsIgnored(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("LoadEnv() on missing file error = %v, want nil", err)
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "vidscribe", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# vidscribe") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Denoise.Method != "noisereduce" {
		t.Errorf("written config Denoise.Method = %q, want %q", cfg.Denoise.Method, "noisereduce")
	}
	if cfg.Transcribe.Backend != "whisper" {
		t.Errorf("written config Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "whisper")
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "vidscribe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existing := []byte("log_level: debug\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existing, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existing) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
