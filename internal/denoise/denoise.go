// Package denoise removes background noise from an audio.Buffer.
//
// Two methods are available: stationary spectral gating ("noisereduce") and a
// zero-phase low-pass Butterworth filter ("butter"). Reduce never returns a
// modified buffer on failure: the caller gets the original audio back
// together with the error and decides whether to carry on with it.
package denoise

import (
	"errors"
	"fmt"

	"github.com/chaz8081/vidscribe/internal/audio"
	"github.com/chaz8081/vidscribe/internal/config"
)

// ErrUnknownMethod is returned for a method name Reduce does not recognise.
var ErrUnknownMethod = errors.New("unknown denoise method")

// Method selects the noise reduction algorithm.
type Method string

const (
	MethodNoiseReduce Method = "noisereduce"
	MethodButter      Method = "butter"
	MethodNone        Method = "none"
)

// Methods lists the supported method names.
func Methods() []Method {
	return []Method{MethodNoiseReduce, MethodButter, MethodNone}
}

// Options configures Reduce.
type Options struct {
	Method Method

	// Spectral gating.
	PropDecrease float64
	NStdThresh   float64
	NFFT         int
	FreqSmoothHz float64
	TimeSmoothMs float64

	// Low-pass filter.
	CutoffHz float64
	Order    int
}

// DefaultOptions returns the options of the default config.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Denoise)
}

// OptionsFromConfig maps the denoise section of the config file.
func OptionsFromConfig(cfg config.DenoiseConfig) Options {
	return Options{
		Method:       Method(cfg.Method),
		PropDecrease: cfg.PropDecrease,
		NStdThresh:   cfg.NStdThresh,
		NFFT:         cfg.NFFT,
		FreqSmoothHz: cfg.FreqSmoothHz,
		TimeSmoothMs: cfg.TimeSmoothMs,
		CutoffHz:     cfg.CutoffHz,
		Order:        cfg.Order,
	}
}

// Reduce applies the configured method to buf. On any failure the original
// buffer is returned unchanged along with the error. Empty buffers are
// returned as-is.
func Reduce(buf audio.Buffer, opts Options) (audio.Buffer, error) {
	if buf.IsEmpty() {
		return buf, nil
	}
	if buf.SampleRate <= 0 {
		return buf, fmt.Errorf("denoise: invalid sample rate %d", buf.SampleRate)
	}

	var (
		out []float64
		err error
	)
	switch opts.Method {
	case MethodNone:
		return buf, nil
	case MethodNoiseReduce:
		out, err = spectralGate(buf.Float64(), buf.SampleRate, opts)
	case MethodButter:
		out, err = lowpass(buf.Float64(), buf.SampleRate, opts.CutoffHz, opts.Order)
	default:
		return buf, fmt.Errorf("denoise: %q: %w", opts.Method, ErrUnknownMethod)
	}
	if err != nil {
		return buf, fmt.Errorf("denoise: %s: %w", opts.Method, err)
	}
	return audio.FromFloat64(out, buf.SampleRate), nil
}
