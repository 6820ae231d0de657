package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chaz8081/vidscribe/internal/audio"
)

// Mel frames (10 ms each) covered by one encoder window.
const encoderWindowFrames = 3000

// Seq2SeqOptions configures a Seq2SeqTranscriber.
type Seq2SeqOptions struct {
	Language         string // "auto" detects it from the first window
	Threads          int
	MaxTokens        int
	SilenceThreshold float64
	Logger           *slog.Logger
}

// Seq2SeqTranscriber drives a whisper ggml model one step at a time: audio is
// turned into log-mel features, each 30 s window is encoded, and text is
// generated greedily from the start-of-transcript prompt.
type Seq2SeqTranscriber struct {
	model *whisperModel
	opts  Seq2SeqOptions
}

// NewSeq2SeqTranscriber loads the model at modelPath.
// The caller must call Close() when done.
func NewSeq2SeqTranscriber(modelPath string, opts Seq2SeqOptions) (*Seq2SeqTranscriber, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 224
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("transcribe: load seq2seq model: %w", err)
	}
	model, err := openWhisperModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load seq2seq model: %w", err)
	}
	opts.Logger.Debug("seq2seq model loaded",
		"path", modelPath,
		"vocab", model.nVocab,
		"text_ctx", model.textCtx(),
		"multilingual", model.multilingual(),
	)
	return &Seq2SeqTranscriber{model: model, opts: opts}, nil
}

// Close frees the model.
func (t *Seq2SeqTranscriber) Close() error {
	if t.model != nil {
		t.model.close()
		t.model = nil
	}
	return nil
}

// Transcribe converts buf to text window by window.
func (t *Seq2SeqTranscriber) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	skip, err := skipInput(buf, t.opts.SilenceThreshold)
	if err != nil || skip {
		return "", err
	}
	if t.model == nil {
		return "", errors.New("transcribe: seq2seq model is closed")
	}

	start := time.Now()
	if err := t.model.pcmToMel(buf.Samples, t.opts.Threads); err != nil {
		return "", fmt.Errorf("transcribe: log-mel features: %w", err)
	}

	eot := t.model.tokenEOT()
	budget := min(t.opts.MaxTokens, t.model.textCtx()/2)
	frames := max(t.model.melFrames(), 1)
	dec := whisperDecoder{model: t.model, threads: t.opts.Threads}

	var (
		parts  []string
		prompt []int32
	)
	for offset := 0; offset < frames; offset += encoderWindowFrames {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := t.model.encode(offset, t.opts.Threads); err != nil {
			return "", fmt.Errorf("transcribe: encode window at %d: %w", offset, err)
		}
		if prompt == nil {
			if prompt, err = t.prompt(); err != nil {
				return "", err
			}
		}

		tokens, err := greedyGenerate(ctx, dec, prompt, eot, budget)
		if err != nil {
			return "", fmt.Errorf("transcribe: generate window at %d: %w", offset, err)
		}
		if len(tokens) == budget {
			t.opts.Logger.Warn("token budget reached, window may be truncated", "offset_frames", offset, "budget", budget)
		}
		if text := decodeTokens(tokens, eot, t.model.tokenText); text != "" {
			parts = append(parts, text)
		}
	}

	t.opts.Logger.Debug("seq2seq transcription complete",
		"windows", (frames+encoderWindowFrames-1)/encoderWindowFrames,
		"audio", buf.Duration(),
		"elapsed", time.Since(start),
	)
	return strings.Join(parts, " "), nil
}

// prompt builds the start-of-transcript sequence. It needs the current
// encoder output when the language is detected automatically.
func (t *Seq2SeqTranscriber) prompt() ([]int32, error) {
	prompt := []int32{t.model.tokenSOT()}
	if t.model.multilingual() {
		lang, err := t.languageID()
		if err != nil {
			return nil, err
		}
		prompt = append(prompt, t.model.tokenLang(lang), t.model.tokenTranscribe())
	}
	return append(prompt, t.model.tokenNoTimestamps()), nil
}

func (t *Seq2SeqTranscriber) languageID() (int, error) {
	lang := strings.ToLower(strings.TrimSpace(t.opts.Language))
	if lang == "" {
		lang = "en"
	}
	if lang != "auto" {
		id := t.model.langID(lang)
		if id < 0 {
			return 0, fmt.Errorf("transcribe: unsupported language %q", lang)
		}
		return id, nil
	}

	id, p, err := t.model.detectLanguage(0, t.opts.Threads)
	if err != nil {
		return 0, fmt.Errorf("transcribe: detect language: %w", err)
	}
	t.opts.Logger.Debug("language detected", "lang", t.model.langCode(id), "p", p)
	return id, nil
}

// whisperDecoder adapts the whisper text decoder to tokenModel.
type whisperDecoder struct {
	model   *whisperModel
	threads int
}

func (d whisperDecoder) nextLogits(token int32, past int) ([]float32, error) {
	return d.model.decode(token, past, d.threads)
}
