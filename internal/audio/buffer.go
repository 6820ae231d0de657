// Package audio holds the in-memory sample buffer shared by the pipelines,
// WAV persistence for it, and microphone capture.
package audio

import (
	"math"
	"time"
)

// Buffer is mono audio: float32 samples in [-1, 1] at SampleRate Hz.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// IsEmpty reports whether the buffer holds no samples.
func (b Buffer) IsEmpty() bool {
	return len(b.Samples) == 0
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square of the samples.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Float64 returns the samples widened to float64 for signal processing.
func (b Buffer) Float64() []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float64(s)
	}
	return out
}

// FromFloat64 builds a buffer from float64 samples.
func FromFloat64(samples []float64, sampleRate int) Buffer {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return Buffer{Samples: out, SampleRate: sampleRate}
}

// Downmix averages interleaved frames of the given channel count into mono.
// A trailing partial frame is dropped.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
