// Package design computes (b, a) coefficients for the notch, low-pass and
// high-pass slots from a frequency description.
//
// Low-pass and high-pass designs are Butterworth or Bessel cascades of
// second-order sections obtained through the bilinear transform; the cascade
// is multiplied out into a single transfer function. The notch is the standard
// second-order IIR notch.
package design

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	dspdesign "github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"

	"sleepywoodpecker/biopotential-serial/internal/filter"
)

// MaxBesselOrder is the highest Bessel order with tabulated poles.
const MaxBesselOrder = 10

var (
	ErrInvalidSampleRate  = errors.New("design: sample rate must be > 0")
	ErrInvalidFrequency   = errors.New("design: frequency must be > 0")
	ErrCutoffAboveNyquist = errors.New("design: frequency must be below the Nyquist frequency")
	ErrInvalidOrder       = errors.New("design: order must be >= 1")
	ErrUnsupportedOrder   = errors.New("design: order not supported for this family")
	ErrInvalidQuality     = errors.New("design: quality factor must be > 0")
	ErrUnknownFamily      = errors.New("design: unknown filter family")
	ErrUnknownBesselNorm  = errors.New("design: unknown bessel normalization")
)

// Family selects the analog prototype for low-pass and high-pass designs.
type Family int

const (
	Butterworth Family = iota
	Bessel
)

func (f Family) String() string {
	switch f {
	case Butterworth:
		return "butterworth"
	case Bessel:
		return "bessel"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "butterworth", "butter":
		return Butterworth, nil
	case "bessel":
		return Bessel, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// BesselNorm selects which property of a Bessel response sits at the cutoff.
type BesselNorm int

const (
	// BesselPhase places the phase midpoint (-order*45 degrees) at the cutoff.
	// The magnitude there is below -3 dB for orders above one.
	BesselPhase BesselNorm = iota
	// BesselMagnitude places the -3 dB point at the cutoff.
	BesselMagnitude
)

func (n BesselNorm) String() string {
	switch n {
	case BesselPhase:
		return "phase"
	case BesselMagnitude:
		return "magnitude"
	default:
		return fmt.Sprintf("BesselNorm(%d)", int(n))
	}
}

func ParseBesselNorm(s string) (BesselNorm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "phase":
		return BesselPhase, nil
	case "magnitude", "mag":
		return BesselMagnitude, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBesselNorm, s)
}

// besselPhaseRatio[n] is the -3 dB frequency of an order-n Bessel prototype
// whose phase midpoint is at 1 rad/s.
var besselPhaseRatio = [MaxBesselOrder + 1]float64{
	0,
	1.0,
	0.78615137775742,
	0.70754940795450,
	0.65236915756359,
	0.60598160019599,
	0.56608479813244,
	0.53196189444270,
	0.50275432961371,
	0.47756997160206,
	0.45564516933109,
}

// Params describes one filter slot.
type Params struct {
	Kind   filter.Kind
	Family Family // ignored for notch
	Order  int    // ignored for notch

	// BesselNorm is ignored unless Family is Bessel. The zero value is
	// BesselPhase.
	BesselNorm BesselNorm

	// Frequency is the cutoff for low/high-pass and the centre for the notch.
	Frequency float64
	// Q is the notch quality factor.
	Q float64

	SampleRate float64
}

func (p Params) String() string {
	if p.Kind == filter.Notch {
		return fmt.Sprintf("%v %.4g Hz Q=%.4g @ %.4g Hz", p.Kind, p.Frequency, p.Q, p.SampleRate)
	}
	if p.Family == Bessel {
		return fmt.Sprintf("%v %v/%v order %d %.4g Hz @ %.4g Hz", p.Kind, p.Family, p.BesselNorm, p.Order, p.Frequency, p.SampleRate)
	}
	return fmt.Sprintf("%v %v order %d %.4g Hz @ %.4g Hz", p.Kind, p.Family, p.Order, p.Frequency, p.SampleRate)
}

// Validate checks p without designing anything.
func (p Params) Validate() error {
	if p.SampleRate <= 0 || math.IsNaN(p.SampleRate) || math.IsInf(p.SampleRate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, p.SampleRate)
	}
	if p.Frequency <= 0 || math.IsNaN(p.Frequency) || math.IsInf(p.Frequency, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, p.Frequency)
	}
	if nyquist := p.SampleRate / 2; p.Frequency >= nyquist {
		return fmt.Errorf("%w: %v Hz >= %v Hz", ErrCutoffAboveNyquist, p.Frequency, nyquist)
	}

	switch p.Kind {
	case filter.Notch:
		if p.Q <= 0 || math.IsNaN(p.Q) || math.IsInf(p.Q, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidQuality, p.Q)
		}
		return nil
	case filter.LowPass, filter.HighPass:
	default:
		return fmt.Errorf("design: %w: %v", filter.ErrUnknownKind, p.Kind)
	}

	if p.Order < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidOrder, p.Order)
	}
	switch p.Family {
	case Butterworth:
	case Bessel:
		if p.Order > MaxBesselOrder {
			return fmt.Errorf("%w: bessel order %d > %d", ErrUnsupportedOrder, p.Order, MaxBesselOrder)
		}
		if p.BesselNorm != BesselPhase && p.BesselNorm != BesselMagnitude {
			return fmt.Errorf("%w: %v", ErrUnknownBesselNorm, p.BesselNorm)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFamily, p.Family)
	}
	return nil
}

// Design validates p and returns the coefficients for it. It is a pure
// function of p.
func Design(p Params) (filter.Coefficients, error) {
	if err := p.Validate(); err != nil {
		return filter.Coefficients{}, err
	}

	sections, err := sections(p)
	if err != nil {
		return filter.Coefficients{}, err
	}

	b, a := multiply(sections)
	return filter.NewCoefficients(b, a)
}

func Notch(frequency, q, sampleRate float64) (filter.Coefficients, error) {
	return Design(Params{Kind: filter.Notch, Frequency: frequency, Q: q, SampleRate: sampleRate})
}

func LowPass(family Family, order int, cutoff, sampleRate float64) (filter.Coefficients, error) {
	return Design(Params{Kind: filter.LowPass, Family: family, Order: order, Frequency: cutoff, SampleRate: sampleRate})
}

func HighPass(family Family, order int, cutoff, sampleRate float64) (filter.Coefficients, error) {
	return Design(Params{Kind: filter.HighPass, Family: family, Order: order, Frequency: cutoff, SampleRate: sampleRate})
}

func sections(p Params) ([]biquad.Coefficients, error) {
	var out []biquad.Coefficients

	switch p.Kind {
	case filter.Notch:
		out = []biquad.Coefficients{dspdesign.Notch(p.Frequency, p.Q, p.SampleRate)}
	case filter.LowPass:
		if p.Family == Bessel {
			out = pass.BesselLP(besselCutoff(p), p.Order, p.SampleRate)
		} else {
			out = pass.ButterworthLP(p.Frequency, p.Order, p.SampleRate)
		}
	case filter.HighPass:
		if p.Family == Bessel {
			out = pass.BesselHP(besselCutoff(p), p.Order, p.SampleRate)
		} else {
			out = pass.ButterworthHP(p.Frequency, p.Order, p.SampleRate)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("design: no sections produced for %v", p)
	}
	for _, s := range out {
		if s == (biquad.Coefficients{}) {
			return nil, fmt.Errorf("design: degenerate section produced for %v", p)
		}
	}
	return out, nil
}

// besselCutoff returns the frequency handed to the -3 dB normalized Bessel
// designs. For phase normalization the prewarped cutoff is scaled by the
// prototype's -3 dB to phase-midpoint ratio, so the digital phase midpoint
// lands exactly on p.Frequency. The result stays below Nyquist.
func besselCutoff(p Params) float64 {
	if p.BesselNorm == BesselMagnitude {
		return p.Frequency
	}

	ratio := besselPhaseRatio[p.Order]
	if p.Kind == filter.HighPass {
		ratio = 1 / ratio
	}
	warped := math.Tan(math.Pi*p.Frequency/p.SampleRate) * ratio
	return p.SampleRate / math.Pi * math.Atan(warped)
}

// multiply expands a cascade of normalized sections into one transfer
// function. First-order sections leave trailing zeros, which are trimmed.
func multiply(sections []biquad.Coefficients) (b, a []float64) {
	b = []float64{1}
	a = []float64{1}
	for _, s := range sections {
		b = convolve(b, []float64{s.B0, s.B1, s.B2})
		a = convolve(a, []float64{1, s.A1, s.A2})
	}
	return trimTrailingZeros(b), trimTrailingZeros(a)
}

func convolve(x, h []float64) []float64 {
	out := make([]float64, len(x)+len(h)-1)
	for i, xv := range x {
		for j, hv := range h {
			out[i+j] += xv * hv
		}
	}
	return out
}

func trimTrailingZeros(v []float64) []float64 {
	n := len(v)
	for n > 1 && v[n-1] == 0 {
		n--
	}
	return v[:n]
}
