// Package media wraps ffprobe and ffmpeg: it finds the audio track in a
// container and turns it into an audio.Buffer, always through a temporary
// WAV file that is removed before returning.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chaz8081/vidscribe/internal/audio"
)

// ErrNoAudioTrack is returned when a container has no (selected) audio stream.
var ErrNoAudioTrack = errors.New("no audio track found")

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures an Extractor.
type Options struct {
	FFmpeg  string
	FFprobe string
	TempDir string
	// AudioStream selects a stream by ffprobe index; negative picks the first audio stream.
	AudioStream int
	Logger      *slog.Logger
}

// Extractor pulls audio out of media files via ffmpeg.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	tempDir string
	stream  int
	run     Runner
	logger  *slog.Logger
}

// NewExtractor creates an Extractor using the system ffmpeg and ffprobe
// unless overridden in opts.
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{
		ffmpeg:  strings.TrimSpace(opts.FFmpeg),
		ffprobe: strings.TrimSpace(opts.FFprobe),
		tempDir: opts.TempDir,
		stream:  opts.AudioStream,
		run:     execRunner,
		logger:  opts.Logger,
	}
	if e.ffmpeg == "" {
		e.ffmpeg = "ffmpeg"
	}
	if e.ffprobe == "" {
		e.ffprobe = "ffprobe"
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// WithRunner replaces the command runner (for testing).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.run = r
	return e
}

// Extract loads the selected audio track of videoPath as a mono buffer at
// the track's native sample rate.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (audio.Buffer, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return audio.Buffer{}, fmt.Errorf("extract: %w", err)
	}

	probe, err := e.Probe(ctx, videoPath)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("extract: load %q: %w", videoPath, err)
	}
	if d := probe.DurationSeconds(); d > 0 {
		e.logger.Info("media loaded", "path", videoPath, "duration_sec", d, "streams", len(probe.Streams))
	}

	stream, err := e.selectStream(probe)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("extract: %q: %w", videoPath, err)
	}

	args := []string{
		"-map", "0:" + strconv.Itoa(stream.Index),
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-c:a", "pcm_s16le",
	}
	buf, err := e.transcode(ctx, videoPath, args)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("extract: %w", err)
	}

	e.logger.Info("audio extracted",
		"stream", stream.Index,
		"codec", stream.CodecName,
		"sample_rate", buf.SampleRate,
		"duration", buf.Duration(),
	)
	return buf, nil
}

// Load reads path as a mono buffer at rate Hz. A mono integer PCM WAV
// already at rate is read directly; anything else, float WAV included, is
// decoded and resampled by ffmpeg.
func (e *Extractor) Load(ctx context.Context, path string, rate int) (audio.Buffer, error) {
	if rate <= 0 {
		return audio.Buffer{}, fmt.Errorf("load: invalid sample rate %d", rate)
	}
	if _, err := os.Stat(path); err != nil {
		return audio.Buffer{}, fmt.Errorf("load: %w", err)
	}

	if info, err := audio.ReadWAVInfo(path); err == nil && info.IsPCM() && info.SampleRate == rate && info.Channels == 1 {
		buf, err := audio.ReadWAV(path)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("load: %w", err)
		}
		return buf, nil
	}

	args := []string{
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
	}
	buf, err := e.transcode(ctx, path, args)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("load: %w", err)
	}
	e.logger.Debug("audio resampled", "path", path, "sample_rate", buf.SampleRate, "samples", buf.Len())
	return buf, nil
}

// transcode runs ffmpeg on source with the given output args into a
// temporary WAV file and decodes it. The temporary directory is removed on
// every return path.
func (e *Extractor) transcode(ctx context.Context, source string, outputArgs []string) (audio.Buffer, error) {
	if e.tempDir != "" {
		if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
			return audio.Buffer{}, fmt.Errorf("ensure temp dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(e.tempDir, "vidscribe-*")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			e.logger.Warn("temp cleanup failed", "dir", workDir, "error", err)
		}
	}()

	dest := filepath.Join(workDir, "audio.wav")
	args := make([]string, 0, len(outputArgs)+8)
	args = append(args, "-y", "-hide_banner", "-loglevel", "error", "-i", source)
	args = append(args, outputArgs...)
	args = append(args, dest)

	if _, err := e.run(ctx, e.ffmpeg, args...); err != nil {
		return audio.Buffer{}, fmt.Errorf("ffmpeg: %w", err)
	}

	buf, err := audio.ReadWAV(dest)
	if err != nil {
		return audio.Buffer{}, err
	}
	return buf, nil
}

func (e *Extractor) selectStream(probe ProbeResult) (Stream, error) {
	streams := probe.AudioStreams()
	if len(streams) == 0 {
		return Stream{}, ErrNoAudioTrack
	}
	if e.stream < 0 {
		return streams[0], nil
	}
	for _, s := range streams {
		if s.Index == e.stream {
			return s, nil
		}
	}
	return Stream{}, fmt.Errorf("stream %d: %w", e.stream, ErrNoAudioTrack)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
