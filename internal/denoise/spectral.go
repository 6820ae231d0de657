package denoise

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Magnitudes below this are floored before conversion to dB.
const minMagnitude = 1e-5

// stft frames a reflect-padded signal with a periodic Hann window.
type stft struct {
	nfft   int
	hop    int
	n      int // unpadded length
	padded []float64
	window []float64
	fft    *fourier.FFT
	frames int
}

func newSTFT(x []float64, nfft int) *stft {
	pad := nfft / 2
	padded := make([]float64, len(x)+2*pad)
	for i := range padded {
		padded[i] = x[reflectIndex(i-pad, len(x))]
	}
	window := make([]float64, nfft)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(nfft))
	}
	hop := nfft / 4
	return &stft{
		nfft:   nfft,
		hop:    hop,
		n:      len(x),
		padded: padded,
		window: window,
		fft:    fourier.NewFFT(nfft),
		frames: 1 + len(x)/hop,
	}
}

// reflectIndex folds i into [0, n) by mirroring about the end samples
// without repeating them.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

func (s *stft) bins() int { return s.nfft/2 + 1 }

// frame computes the spectrum of frame t into dst using scratch for the
// windowed samples.
func (s *stft) frame(t int, dst []complex128, scratch []float64) []complex128 {
	start := t * s.hop
	for i := range scratch {
		if j := start + i; j < len(s.padded) {
			scratch[i] = s.padded[j] * s.window[i]
		} else {
			scratch[i] = 0
		}
	}
	return s.fft.Coefficients(dst, scratch)
}

func magnitudeDB(c complex128) float64 {
	return 20 * math.Log10(math.Max(math.Hypot(real(c), imag(c)), minMagnitude))
}

// triangle returns the weights 1-|k|/(n+1) for k in [-n, n].
func triangle(n int) []float64 {
	w := make([]float64, 2*n+1)
	for k := -n; k <= n; k++ {
		w[k+n] = 1 - math.Abs(float64(k))/float64(n+1)
	}
	return w
}

// spectralGate performs stationary spectral gating: per-bin noise statistics
// are taken over the whole signal, bins below mean + nstd*std are gated, and
// the binary mask is smoothed over frequency and time before being applied.
func spectralGate(x []float64, rate int, opts Options) ([]float64, error) {
	nfft := opts.NFFT
	if nfft < 16 || nfft&(nfft-1) != 0 {
		return nil, fmt.Errorf("n_fft must be a power of two >= 16, got %d", nfft)
	}
	if opts.PropDecrease < 0 || opts.PropDecrease > 1 {
		return nil, fmt.Errorf("prop_decrease must be within [0, 1], got %g", opts.PropDecrease)
	}

	s := newSTFT(x, nfft)
	nbins := s.bins()

	// Pass 1: per-bin mean and standard deviation of the dB spectrogram.
	sum := make([]float64, nbins)
	sumSq := make([]float64, nbins)
	scratch := make([]float64, nfft)
	coeff := make([]complex128, nbins)
	for t := 0; t < s.frames; t++ {
		coeff = s.frame(t, coeff, scratch)
		for k, c := range coeff {
			db := magnitudeDB(c)
			sum[k] += db
			sumSq[k] += db * db
		}
	}
	thresh := make([]float64, nbins)
	frames := float64(s.frames)
	for k := range thresh {
		mean := sum[k] / frames
		variance := math.Max(sumSq[k]/frames-mean*mean, 0)
		thresh[k] = mean + opts.NStdThresh*math.Sqrt(variance)
	}

	nFreq := int(opts.FreqSmoothHz / (float64(rate) / float64(nfft/2)))
	nTime := int(opts.TimeSmoothMs / (float64(s.hop) / float64(rate) * 1000))
	freqKernel := triangle(max(nFreq, 0))
	timeKernel := triangle(max(nTime, 0))
	nFreq = len(freqKernel) / 2
	nTime = len(timeKernel) / 2

	// Pass 2: keep a ring of spectra and frequency-smoothed masks covering
	// frames t-nTime..t+nTime, smooth over time, gate frame t and overlap-add.
	ringSize := 2*nTime + 1
	specs := make([][]complex128, ringSize)
	masks := make([][]float64, ringSize)
	for i := range specs {
		specs[i] = make([]complex128, nbins)
		masks[i] = make([]float64, nbins)
	}
	binary := make([]float64, nbins)
	fill := func(j int) {
		slot := j % ringSize
		specs[slot] = s.frame(j, specs[slot], scratch)
		for k, c := range specs[slot] {
			binary[k] = 0
			if magnitudeDB(c) > thresh[k] {
				binary[k] = 1
			}
		}
		smooth(masks[slot], binary, freqKernel)
	}

	outLen := nfft + s.hop*(s.frames-1)
	acc := make([]float64, outLen)
	wsum := make([]float64, outLen)
	gain := make([]float64, nbins)
	gated := make([]complex128, nbins)
	frame := make([]float64, nfft)
	next := 0
	for t := 0; t < s.frames; t++ {
		for ; next <= min(t+nTime, s.frames-1); next++ {
			fill(next)
		}

		for k := range gain {
			gain[k] = 0
		}
		var wtotal float64
		for d := -nTime; d <= nTime; d++ {
			j := t + d
			if j < 0 || j >= s.frames {
				continue
			}
			w := timeKernel[d+nTime]
			wtotal += w
			row := masks[j%ringSize]
			for k := range gain {
				gain[k] += w * row[k]
			}
		}

		spec := specs[t%ringSize]
		for k := range gain {
			m := gain[k] / wtotal
			g := 1 - opts.PropDecrease*(1-m)
			gated[k] = spec[k] * complex(g, 0)
		}

		frame = s.fft.Sequence(frame, gated)
		start := t * s.hop
		for i, v := range frame {
			w := s.window[i]
			acc[start+i] += v / float64(nfft) * w
			wsum[start+i] += w * w
		}
	}

	out := make([]float64, s.n)
	pad := nfft / 2
	for i := range out {
		j := i + pad
		if wsum[j] < 1e-10 {
			return nil, errors.New("inverse stft: window overlap vanished")
		}
		out[i] = acc[j] / wsum[j]
	}
	return out, nil
}

// smooth convolves src with a symmetric kernel into dst, normalising by the
// kernel weight that falls inside the row.
func smooth(dst, src, kernel []float64) {
	half := len(kernel) / 2
	for i := range dst {
		var v, w float64
		for d := -half; d <= half; d++ {
			j := i + d
			if j < 0 || j >= len(src) {
				continue
			}
			kw := kernel[d+half]
			v += kw * src[j]
			w += kw
		}
		dst[i] = v / w
	}
}
