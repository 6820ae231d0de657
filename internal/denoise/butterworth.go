package denoise

import (
	"fmt"
	"math"
	"slices"
)

// biquad is a normalised second-order section (a0 == 1).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (q biquad) dcGain() float64 {
	return (q.b0 + q.b1 + q.b2) / (1 + q.a1 + q.a2)
}

// butterLowpass designs an even-order low-pass Butterworth filter as a
// cascade of bilinear-transformed biquads.
func butterLowpass(order int, cutoff float64, rate int) ([]biquad, error) {
	nyquist := float64(rate) / 2
	switch {
	case order <= 0 || order%2 != 0:
		return nil, fmt.Errorf("order must be a positive even number, got %d", order)
	case cutoff <= 0:
		return nil, fmt.Errorf("cutoff must be > 0, got %g Hz", cutoff)
	case cutoff >= nyquist:
		return nil, fmt.Errorf("cutoff %g Hz must be below the Nyquist frequency %g Hz", cutoff, nyquist)
	}

	w0 := 2 * math.Pi * cutoff / float64(rate)
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	sections := make([]biquad, order/2)
	for k := range sections {
		q := 1 / (2 * math.Cos(math.Pi*float64(2*k+1)/float64(2*order)))
		alpha := sinW / (2 * q)
		a0 := 1 + alpha
		sections[k] = biquad{
			b0: (1 - cosW) / 2 / a0,
			b1: (1 - cosW) / a0,
			b2: (1 - cosW) / 2 / a0,
			a1: -2 * cosW / a0,
			a2: (1 - alpha) / a0,
		}
	}
	return sections, nil
}

// steadyState returns the transposed direct form II state of every section
// for a constant input of 1.
func steadyState(sections []biquad) [][2]float64 {
	zi := make([][2]float64, len(sections))
	level := 1.0
	for i, q := range sections {
		g := q.dcGain()
		zi[i] = [2]float64{
			level * (q.b1 + q.b2 - (q.a1+q.a2)*g),
			level * (q.b2 - q.a2*g),
		}
		level *= g
	}
	return zi
}

// sosfilt filters x in place through the cascade starting from zi scaled by x0.
func sosfilt(sections []biquad, zi [][2]float64, x []float64, x0 float64) {
	for i, q := range sections {
		z1, z2 := zi[i][0]*x0, zi[i][1]*x0
		for n, v := range x {
			y := q.b0*v + z1
			z1 = q.b1*v - q.a1*y + z2
			z2 = q.b2*v - q.a2*y
			x[n] = y
		}
	}
}

// filtfilt applies the cascade forward and backward for zero phase
// distortion. The signal is extended at both ends by odd reflection.
func filtfilt(sections []biquad, x []float64) []float64 {
	n := len(x)
	padlen := min(3*(2*len(sections)+1), n-1)

	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i > 0; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := steadyState(sections)
	sosfilt(sections, zi, ext, ext[0])
	slices.Reverse(ext)
	sosfilt(sections, zi, ext, ext[0])
	slices.Reverse(ext)

	return ext[padlen : padlen+n]
}

func lowpass(x []float64, rate int, cutoff float64, order int) ([]float64, error) {
	sections, err := butterLowpass(order, cutoff, rate)
	if err != nil {
		return nil, err
	}
	return filtfilt(sections, x), nil
}
