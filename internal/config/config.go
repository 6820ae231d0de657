package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Tools      ToolsConfig      `yaml:"tools"`
	Extract    ExtractConfig    `yaml:"extract"`
	Denoise    DenoiseConfig    `yaml:"denoise"`
	Output     OutputConfig     `yaml:"output"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Audio      AudioConfig      `yaml:"audio"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // "console" or "json"
	LogFile    string           `yaml:"log_file"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

// ExtractConfig holds audio extraction settings.
type ExtractConfig struct {
	TempDir string `yaml:"temp_dir"`
	// AudioStream is the ffprobe stream index to extract; -1 picks the first audio stream.
	AudioStream int `yaml:"audio_stream"`
}

// DenoiseConfig holds noise reduction settings.
type DenoiseConfig struct {
	Method       string  `yaml:"method"` // "noisereduce", "butter" or "none"
	PropDecrease float64 `yaml:"prop_decrease"`
	NStdThresh   float64 `yaml:"n_std_thresh"`
	NFFT         int     `yaml:"n_fft"`
	FreqSmoothHz float64 `yaml:"freq_smooth_hz"`
	TimeSmoothMs float64 `yaml:"time_smooth_ms"`
	CutoffHz     float64 `yaml:"cutoff_hz"`
	Order        int     `yaml:"order"`
}

// OutputConfig holds settings for written audio files.
type OutputConfig struct {
	BitDepth int `yaml:"bit_depth"`
}

// TranscribeConfig holds speech-to-text backend settings.
type TranscribeConfig struct {
	Backend          string       `yaml:"backend"` // "whisper", "seq2seq" or "openai"
	Model            string       `yaml:"model"`
	ModelPath        string       `yaml:"model_path"`
	ModelsDir        string       `yaml:"models_dir"`
	AutoDownload     bool         `yaml:"auto_download"`
	Language         string       `yaml:"language"`
	Threads          int          `yaml:"threads"`
	MaxTokens        int          `yaml:"max_tokens"`
	SilenceThreshold float64      `yaml:"silence_threshold"`
	OpenAI           OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for the remote transcription API.
type OpenAIConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey string `yaml:"api_key"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vidscribe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory downloaded models are stored in.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("models")
	}
	return filepath.Join(home, ".local", "share", "vidscribe", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Extract: ExtractConfig{
			AudioStream: -1,
		},
		Denoise: DenoiseConfig{
			Method:       "noisereduce",
			PropDecrease: 1.0,
			NStdThresh:   1.5,
			NFFT:         1024,
			FreqSmoothHz: 500,
			TimeSmoothMs: 50,
			CutoffHz:     2000,
			Order:        4,
		},
		Output: OutputConfig{
			BitDepth: 16,
		},
		Transcribe: TranscribeConfig{
			Backend:          "whisper",
			Model:            "base",
			ModelsDir:        DefaultModelsDir(),
			AutoDownload:     true,
			Language:         "en",
			Threads:          4,
			MaxTokens:        224,
			SilenceThreshold: 1e-4,
			OpenAI: OpenAIConfig{
				Model: "whisper-1",
			},
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in path settings is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)
	cfg.Transcribe.ModelsDir = expandTilde(cfg.Transcribe.ModelsDir)
	cfg.Extract.TempDir = expandTilde(cfg.Extract.TempDir)
	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

// LoadEnv loads KEY=value pairs from the given .env files (or ./.env when
// none are given) without overriding variables already set. Missing files
// are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// OpenAIKey returns the configured API key, falling back to OPENAI_API_KEY.
func (c *Config) OpenAIKey() string {
	return c.Transcribe.OpenAIKey()
}

// OpenAIKey returns the configured API key, falling back to OPENAI_API_KEY.
func (t *TranscribeConfig) OpenAIKey() string {
	if key := strings.TrimSpace(t.OpenAI.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Tools.FFmpeg == "" {
		return fmt.Errorf("tools.ffmpeg must not be empty")
	}
	if c.Tools.FFprobe == "" {
		return fmt.Errorf("tools.ffprobe must not be empty")
	}

	if err := c.Denoise.validate(); err != nil {
		return err
	}

	switch c.Output.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("output.bit_depth must be 16, 24 or 32, got %d", c.Output.BitDepth)
	}

	if err := c.Transcribe.validate(); err != nil {
		return err
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be \"console\" or \"json\", got %q", c.LogFormat)
	}

	return nil
}

func (d DenoiseConfig) validate() error {
	switch d.Method {
	case "noisereduce", "butter", "none":
	default:
		return fmt.Errorf("denoise.method must be noisereduce, butter, or none, got %q", d.Method)
	}
	if d.PropDecrease < 0 || d.PropDecrease > 1 {
		return fmt.Errorf("denoise.prop_decrease must be within [0, 1], got %g", d.PropDecrease)
	}
	if d.NFFT < 16 || d.NFFT&(d.NFFT-1) != 0 {
		return fmt.Errorf("denoise.n_fft must be a power of two >= 16, got %d", d.NFFT)
	}
	if d.CutoffHz <= 0 {
		return fmt.Errorf("denoise.cutoff_hz must be > 0")
	}
	if d.Order <= 0 || d.Order%2 != 0 {
		return fmt.Errorf("denoise.order must be a positive even number, got %d", d.Order)
	}
	return nil
}

func (t TranscribeConfig) validate() error {
	switch t.Backend {
	case "whisper", "seq2seq":
		if t.Model == "" && t.ModelPath == "" {
			return fmt.Errorf("transcribe.model or transcribe.model_path must be set for backend %q", t.Backend)
		}
	case "openai":
		if t.OpenAI.Model == "" {
			return fmt.Errorf("transcribe.openai.model must not be empty")
		}
	default:
		return fmt.Errorf("transcribe.backend must be whisper, seq2seq, or openai, got %q", t.Backend)
	}
	if t.Threads <= 0 {
		return fmt.Errorf("transcribe.threads must be > 0")
	}
	if t.MaxTokens <= 0 {
		return fmt.Errorf("transcribe.max_tokens must be > 0")
	}
	if t.SilenceThreshold < 0 {
		return fmt.Errorf("transcribe.silence_threshold must be >= 0")
	}
	return nil
}

// ParseLogLevel maps a config log level to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# vidscribe configuration
# Generated on first run. Edit freely; missing keys fall back to defaults.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns the
// written path, or "" when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
