// Package transcribe provides speech-to-text backends.
//
// Supported backends:
//   - whisper: whisper.cpp full transcription via the Go bindings (default)
//   - seq2seq: the same ggml model driven step by step: log-mel features,
//     encoder pass, then greedy token generation
//   - openai: the hosted transcription API
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaz8081/vidscribe/internal/audio"
	"github.com/chaz8081/vidscribe/internal/config"
	"github.com/chaz8081/vidscribe/internal/models"
)

// SampleRate is the only input rate the backends accept.
const SampleRate = 16000

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown transcription backend")
	// ErrSampleRateMismatch is returned when a buffer is not at SampleRate.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
)

// Transcriber converts audio to text.
type Transcriber interface {
	// Transcribe returns the text spoken in buf, which must be mono at
	// SampleRate. Empty or silent audio yields "" and no error.
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Transcriber based on the config backend setting. Local
// backends resolve cfg.Model through the models directory, downloading it
// when cfg.AutoDownload is set, unless cfg.ModelPath names a file.
func New(ctx context.Context, cfg *config.TranscribeConfig, logger *slog.Logger, dl *models.Downloader) (Transcriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "whisper", "":
		path, err := modelPath(ctx, cfg, dl)
		if err != nil {
			return nil, err
		}
		return NewWhisperTranscriber(path, WhisperOptions{
			Language:         cfg.Language,
			Threads:          cfg.Threads,
			SilenceThreshold: cfg.SilenceThreshold,
			Logger:           logger,
		})
	case "seq2seq":
		path, err := modelPath(ctx, cfg, dl)
		if err != nil {
			return nil, err
		}
		return NewSeq2SeqTranscriber(path, Seq2SeqOptions{
			Language:         cfg.Language,
			Threads:          cfg.Threads,
			MaxTokens:        cfg.MaxTokens,
			SilenceThreshold: cfg.SilenceThreshold,
			Logger:           logger,
		})
	case "openai":
		return NewOpenAITranscriber(OpenAIOptions{
			APIKey:           cfg.OpenAIKey(),
			BaseURL:          cfg.OpenAI.BaseURL,
			Model:            cfg.OpenAI.Model,
			Language:         cfg.Language,
			SilenceThreshold: cfg.SilenceThreshold,
			Logger:           logger,
		})
	default:
		return nil, fmt.Errorf("transcribe: %q (supported: whisper, seq2seq, openai): %w", cfg.Backend, ErrUnknownBackend)
	}
}

func modelPath(ctx context.Context, cfg *config.TranscribeConfig, dl *models.Downloader) (string, error) {
	if cfg.ModelPath != "" {
		return cfg.ModelPath, nil
	}
	path, err := models.Resolve(ctx, cfg.Model, cfg.ModelsDir, cfg.AutoDownload, dl)
	if err != nil {
		return "", fmt.Errorf("transcribe: resolve model: %w", err)
	}
	return path, nil
}

// skipInput reports whether buf needs no inference: it is empty or its peak
// is below silence. A buffer at the wrong rate is an error.
func skipInput(buf audio.Buffer, silence float64) (bool, error) {
	if buf.IsEmpty() {
		return true, nil
	}
	if buf.SampleRate != SampleRate {
		return false, fmt.Errorf("transcribe: got %d Hz, want %d Hz: %w", buf.SampleRate, SampleRate, ErrSampleRateMismatch)
	}
	return buf.Peak() < silence, nil
}
