package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chaz8081/vidscribe/internal/audio"
)

// OpenAIOptions configures an OpenAITranscriber.
type OpenAIOptions struct {
	APIKey           string
	BaseURL          string // empty uses the public endpoint
	Model            string
	Language         string // "auto" omits the hint
	SilenceThreshold float64
	Logger           *slog.Logger
}

// OpenAITranscriber sends audio to the hosted transcription API.
type OpenAITranscriber struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAITranscriber creates a client for the transcription API.
func NewOpenAITranscriber(opts OpenAIOptions) (*OpenAITranscriber, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("transcribe: openai backend requires an API key (set OPENAI_API_KEY)")
	}
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		opts:   opts,
	}, nil
}

// Close is a no-op; the client holds no native resources.
func (t *OpenAITranscriber) Close() error { return nil }

// Transcribe uploads buf as a 16-bit WAV and returns the recognised text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	skip, err := skipInput(buf, t.opts.SilenceThreshold)
	if err != nil || skip {
		return "", err
	}

	data, err := audio.EncodeWAV(buf, 16)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	req := openai.AudioRequest{
		Model:    t.opts.Model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(data),
		Format:   openai.AudioResponseFormatJSON,
	}
	if lang := t.opts.Language; lang != "" && lang != "auto" {
		req.Language = lang
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcribe: openai: %w", err)
	}
	t.opts.Logger.Debug("openai transcription complete",
		"model", t.opts.Model,
		"upload_bytes", len(data),
		"elapsed", time.Since(start),
	)
	return strings.TrimSpace(resp.Text), nil
}
