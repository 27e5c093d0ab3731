// Package spectrum provides the frequency-domain views used by snapshot
// consumers: a Hann-windowed power spectrum and single-frequency power.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/mjibson/go-dsp/fft"
)

var (
	ErrEmptyInput        = errors.New("spectrum: input must not be empty")
	ErrInvalidSampleRate = errors.New("spectrum: sample rate must be > 0")
)

// Spectrum is a one-sided power spectrum.
type Spectrum struct {
	Frequencies []float64
	Power       []float64
}

// PowerSpectrum removes the mean of x, applies a Hann window and returns the
// one-sided power per FFT bin.
func PowerSpectrum(x []float64, sampleRate float64) (Spectrum, error) {
	if len(x) == 0 {
		return Spectrum{}, ErrEmptyInput
	}
	if sampleRate <= 0 {
		return Spectrum{}, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}

	coeffs, err := window.Hann(len(x))
	if err != nil {
		return Spectrum{}, fmt.Errorf("spectrum: hann window: %w", err)
	}

	windowed := RemoveMean(x)
	for i := range windowed {
		windowed[i] *= coeffs[i]
	}

	bins := fft.FFTReal(windowed)
	n := len(x)/2 + 1
	s := Spectrum{
		Frequencies: make([]float64, n),
		Power:       make([]float64, n),
	}
	for k := 0; k < n; k++ {
		mag := cmplx.Abs(bins[k])
		s.Frequencies[k] = float64(k) * sampleRate / float64(len(x))
		s.Power[k] = mag * mag / float64(len(x))
	}
	return s, nil
}

// Dominant returns the bin with the highest power at or above minFrequency.
func (s Spectrum) Dominant(minFrequency float64) (frequency, power float64) {
	power = -1
	for i, f := range s.Frequencies {
		if f < minFrequency {
			continue
		}
		if s.Power[i] > power {
			frequency, power = f, s.Power[i]
		}
	}
	if power < 0 {
		return 0, 0
	}
	return frequency, power
}

// BandPower returns |X(f)|^2 of x at frequency, evaluated with the Goertzel
// recursion over the whole input.
func BandPower(x []float64, frequency, sampleRate float64) (float64, error) {
	if len(x) == 0 {
		return 0, ErrEmptyInput
	}

	g, err := spectrum.NewGoertzel(frequency, sampleRate)
	if err != nil {
		return 0, err
	}
	g.ProcessBlock(x)
	return g.Power(), nil
}

// RemoveMean returns a copy of x with its average subtracted.
func RemoveMean(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

// RatioDB expresses reference/measured as a positive attenuation in dB.
// A measured value of zero yields +Inf.
func RatioDB(reference, measured float64) float64 {
	if measured <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(reference/measured)
}
