// Package pipeline sequences the two user-facing flows: cleaning the audio
// track of a video (extract, denoise, write) and transcribing an audio file
// (load at 16 kHz, transcribe, write text).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/vidscribe/internal/audio"
	"github.com/chaz8081/vidscribe/internal/denoise"
	"github.com/chaz8081/vidscribe/internal/transcribe"
)

// AudioExtractor pulls the audio track out of a media file.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (audio.Buffer, error)
}

// AudioLoader reads an audio file as mono samples at a given rate.
type AudioLoader interface {
	Load(ctx context.Context, path string, rate int) (audio.Buffer, error)
}

// CleanResult describes a finished Cleaner run.
type CleanResult struct {
	RunID      string
	Input      string
	Output     string
	SampleRate int
	Duration   time.Duration
	Method     denoise.Method
	// InputRMS and OutputRMS are the signal levels before and after noise
	// reduction.
	InputRMS  float64
	OutputRMS float64
	// FellBack is set when noise reduction failed and the original audio
	// was written instead.
	FellBack bool
	Elapsed  time.Duration
}

// Cleaner runs extraction, noise reduction and WAV output.
type Cleaner struct {
	extractor AudioExtractor
	denoise   denoise.Options
	bitDepth  int
	logger    *slog.Logger
}

// NewCleaner creates a Cleaner. bitDepth is the PCM depth of the output file.
func NewCleaner(extractor AudioExtractor, opts denoise.Options, bitDepth int, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	if opts.Method == "" {
		opts = denoise.DefaultOptions()
	}
	return &Cleaner{extractor: extractor, denoise: opts, bitDepth: bitDepth, logger: logger}
}

// Run extracts the audio of videoPath, reduces its noise and writes it to
// outPath. If noise reduction fails the original audio is written and the
// failure is logged as a warning.
func (c *Cleaner) Run(ctx context.Context, videoPath, outPath string) (CleanResult, error) {
	start := time.Now()
	res := CleanResult{RunID: uuid.NewString(), Input: videoPath, Output: outPath, Method: c.denoise.Method}
	logger := c.logger.With("run_id", res.RunID)
	logger.Info("cleaning audio", "input", videoPath, "output", outPath, "method", c.denoise.Method)

	buf, err := c.extractor.Extract(ctx, videoPath)
	if err != nil {
		return res, fmt.Errorf("pipeline: clean: %w", err)
	}

	cleaned, err := denoise.Reduce(buf, c.denoise)
	if err != nil {
		logger.Warn("noise reduction failed, keeping original audio", "method", c.denoise.Method, "error", err)
		cleaned = buf
		res.FellBack = true
	}

	if err := ensureDir(outPath); err != nil {
		return res, fmt.Errorf("pipeline: clean: %w", err)
	}
	if err := audio.WriteWAV(outPath, cleaned, c.bitDepth); err != nil {
		return res, fmt.Errorf("pipeline: clean: %w", err)
	}

	res.SampleRate = cleaned.SampleRate
	res.Duration = cleaned.Duration()
	res.InputRMS = buf.RMS()
	res.OutputRMS = cleaned.RMS()
	res.Elapsed = time.Since(start)
	logger.Info("cleaned audio saved",
		"output", outPath,
		"sample_rate", res.SampleRate,
		"duration", res.Duration,
		"rms_in", res.InputRMS,
		"rms_out", res.OutputRMS,
		"fell_back", res.FellBack,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// TranscriptResult describes a finished Transcription run.
type TranscriptResult struct {
	RunID    string
	Input    string
	Output   string // empty when the text was not written to a file
	Text     string
	Duration time.Duration
	Elapsed  time.Duration
}

// Transcription loads an audio file and transcribes it.
type Transcription struct {
	loader      AudioLoader
	transcriber transcribe.Transcriber
	logger      *slog.Logger
}

// NewTranscription creates a Transcription. The transcriber is not closed by
// the pipeline.
func NewTranscription(loader AudioLoader, tr transcribe.Transcriber, logger *slog.Logger) *Transcription {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcription{loader: loader, transcriber: tr, logger: logger}
}

// Run transcribes audioPath. When outPath is set the text is also written
// there, followed by a newline.
func (p *Transcription) Run(ctx context.Context, audioPath, outPath string) (TranscriptResult, error) {
	start := time.Now()
	res := TranscriptResult{RunID: uuid.NewString(), Input: audioPath}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("transcribing", "input", audioPath)

	buf, err := p.loader.Load(ctx, audioPath, transcribe.SampleRate)
	if err != nil {
		return res, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	res.Duration = buf.Duration()

	text, err := p.transcriber.Transcribe(ctx, buf)
	if err != nil {
		return res, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	res.Text = text
	if text == "" {
		logger.Warn("no speech recognised", "input", audioPath, "duration", res.Duration)
	}

	if outPath != "" {
		if err := ensureDir(outPath); err != nil {
			return res, fmt.Errorf("pipeline: transcribe: %w", err)
		}
		if err := os.WriteFile(outPath, []byte(text+"\n"), 0o644); err != nil {
			return res, fmt.Errorf("pipeline: write transcript: %w", err)
		}
		res.Output = outPath
	}

	res.Elapsed = time.Since(start)
	logger.Info("transcription complete",
		"chars", len(text),
		"duration", res.Duration,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// Result pairs the outcomes of a combined clean-then-transcribe run.
type Result struct {
	Clean      CleanResult
	Transcript TranscriptResult
}

// Run cleans videoPath into audioOut and then transcribes audioOut.
func Run(ctx context.Context, c *Cleaner, p *Transcription, videoPath, audioOut, textOut string) (Result, error) {
	var res Result
	if c == nil || p == nil {
		return res, errors.New("pipeline: run: cleaner and transcription are required")
	}
	clean, err := c.Run(ctx, videoPath, audioOut)
	res.Clean = clean
	if err != nil {
		return res, err
	}
	tr, err := p.Run(ctx, audioOut, textOut)
	res.Transcript = tr
	return res, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
