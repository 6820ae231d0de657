package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/vidscribe/internal/audio"
)

// WhisperOptions configures a WhisperTranscriber.
type WhisperOptions struct {
	Language         string // "auto" lets the model detect it
	Threads          int
	SilenceThreshold float64
	Logger           *slog.Logger
}

// WhisperTranscriber wraps a whisper.cpp model for speech-to-text.
type WhisperTranscriber struct {
	model whisper.Model
	opts  WhisperOptions
}

// NewWhisperTranscriber loads a whisper model from the given path.
// The caller must call Close() when done.
func NewWhisperTranscriber(modelPath string, opts WhisperOptions) (*WhisperTranscriber, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	opts.Logger.Debug("whisper model loaded", "path", modelPath, "multilingual", model.IsMultilingual())
	return &WhisperTranscriber{model: model, opts: opts}, nil
}

// Close releases the whisper model resources.
func (t *WhisperTranscriber) Close() error {
	if t.model != nil {
		err := t.model.Close()
		t.model = nil
		return err
	}
	return nil
}

// Transcribe runs whisper's full transcription over buf and joins the
// segment texts.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	skip, err := skipInput(buf, t.opts.SilenceThreshold)
	if err != nil || skip {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.model == nil {
		return "", errors.New("transcribe: whisper model is closed")
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: create context: %w", err)
	}
	if t.opts.Threads > 0 {
		wctx.SetThreads(uint(t.opts.Threads))
	}
	if lang := t.opts.Language; lang != "" && t.model.IsMultilingual() {
		if err := wctx.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("transcribe: set language %q: %w", lang, err)
		}
	}

	start := time.Now()
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(buf.Samples, keepGoing, nil, nil); err != nil {
		return "", fmt.Errorf("transcribe: process: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(seg.Text))
	}

	text := strings.TrimSpace(strings.Join(segments, " "))
	t.opts.Logger.Debug("whisper transcription complete",
		"segments", len(segments),
		"audio", buf.Duration(),
		"elapsed", time.Since(start),
	)
	return text, nil
}
