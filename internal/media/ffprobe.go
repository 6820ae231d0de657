package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProbeResult is the parsed output of an ffprobe inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Tags       struct {
		Language string `json:"language"`
	} `json:"tags"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// IsAudio reports whether the stream carries audio.
func (s Stream) IsAudio() bool {
	return strings.EqualFold(s.CodecType, "audio")
}

// SampleRateHz returns the stream sample rate, or 0 when unavailable.
func (s Stream) SampleRateHz() int {
	v, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil {
		return 0
	}
	return v
}

// AudioStreams returns the audio streams in container order.
func (r ProbeResult) AudioStreams() []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if s.IsAudio() {
			out = append(out, s)
		}
	}
	return out
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Probe executes ffprobe against path and decodes the JSON response.
func (e *Extractor) Probe(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe: empty path")
	}

	out, err := e.run(ctx, e.ffprobe, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe: parse output: %w", err)
	}
	return result, nil
}

// Inspect probes path with the ffprobe found on PATH.
func Inspect(ctx context.Context, path string) (ProbeResult, error) {
	return NewExtractor(Options{}).Probe(ctx, path)
}
