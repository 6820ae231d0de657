package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/config"
	"github.com/chaz8081/vidscribe/internal/denoise"
	"github.com/chaz8081/vidscribe/internal/logging"
	"github.com/chaz8081/vidscribe/internal/media"
	"github.com/chaz8081/vidscribe/internal/models"
	"github.com/chaz8081/vidscribe/internal/pipeline"
	"github.com/chaz8081/vidscribe/internal/transcribe"
)

// configEnv names a config file when --config is not given.
const configEnv = "VIDSCRIBE_CONFIG"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	config   *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		closeLog:     func() error { return nil },
	}
}

// setup loads .env, the config file and the logger.
func (c *commandContext) setup(cmd *cobra.Command) error {
	if c.config != nil {
		return nil
	}
	if err := config.LoadEnv(); err != nil {
		return err
	}

	cfg, source, err := loadConfig(strings.TrimSpace(*c.configFlag))
	if err != nil {
		return err
	}
	if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	var w io.Writer
	if out := cmd.ErrOrStderr(); out != os.Stderr {
		w = out
	}
	logger, closeLog, err := logging.NewFromConfig(cfg, w)
	if err != nil {
		return err
	}

	c.config = cfg
	c.logger = logger
	c.closeLog = closeLog
	logger.Debug("config loaded", "source", source)
	return nil
}

func (c *commandContext) close() {
	if err := c.closeLog(); err != nil {
		fmt.Fprintln(os.Stderr, "close log file:", err)
	}
}

// loadConfig loads the config from the specified path, then $VIDSCRIBE_CONFIG,
// then the default config path, or falls back to built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(configEnv))
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", path, err)
		}
		return cfg, path, nil
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, defaultPath, nil
	}
	return config.Default(), "defaults", nil
}

func (c *commandContext) extractor() *media.Extractor {
	return media.NewExtractor(media.Options{
		FFmpeg:      c.config.Tools.FFmpeg,
		FFprobe:     c.config.Tools.FFprobe,
		TempDir:     c.config.Extract.TempDir,
		AudioStream: c.config.Extract.AudioStream,
		Logger:      c.logger,
	})
}

func (c *commandContext) cleaner() *pipeline.Cleaner {
	return pipeline.NewCleaner(
		c.extractor(),
		denoise.OptionsFromConfig(c.config.Denoise),
		c.config.Output.BitDepth,
		c.logger,
	)
}

// transcriber loads the configured backend. Download progress goes to w.
func (c *commandContext) transcriber(cmd *cobra.Command, w io.Writer) (transcribe.Transcriber, error) {
	dl := models.NewDownloader(c.logger, w)
	return transcribe.New(cmd.Context(), &c.config.Transcribe, c.logger, dl)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
