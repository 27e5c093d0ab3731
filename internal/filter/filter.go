// Package filter applies IIR filters, given as numerator/denominator
// coefficient vectors, to a window of samples.
//
// Each call filters the supplied window as a self-contained signal: the delay
// line starts at zero and nothing is carried over to the next call.
package filter

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrEmptyCoefficients      = errors.New("filter: coefficient vectors must not be empty")
	ErrZeroLeadingCoefficient = errors.New("filter: leading denominator coefficient a[0] must be non-zero")
	ErrNonFiniteCoefficient   = errors.New("filter: coefficients must be finite")
	ErrNonFiniteOutput        = errors.New("filter: non-finite output")
	ErrUnknownKind            = errors.New("filter: unknown filter kind")
)

// Kind names one of the filter slots.
type Kind int

const (
	Notch Kind = iota
	LowPass
	HighPass

	numKinds
)

// Kinds lists every slot in chain order.
var Kinds = [numKinds]Kind{Notch, LowPass, HighPass}

func (k Kind) String() string {
	switch k {
	case Notch:
		return "notch"
	case LowPass:
		return "low-pass"
	case HighPass:
		return "high-pass"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) valid() bool {
	return k >= 0 && k < numKinds
}

// ParseKind accepts "notch", "low-pass"/"lowpass"/"lpf" and "high-pass"/"highpass"/"hpf".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notch":
		return Notch, nil
	case "low-pass", "lowpass", "lpf":
		return LowPass, nil
	case "high-pass", "highpass", "hpf":
		return HighPass, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Coefficients is an immutable (b, a) pair. Build it with NewCoefficients;
// the accessors return copies.
type Coefficients struct {
	b, a []float64
}

// NewCoefficients validates and copies b and a.
func NewCoefficients(b, a []float64) (Coefficients, error) {
	if len(b) == 0 || len(a) == 0 {
		return Coefficients{}, ErrEmptyCoefficients
	}
	if a[0] == 0 {
		return Coefficients{}, ErrZeroLeadingCoefficient
	}
	for _, v := range b {
		if !isFinite(v) {
			return Coefficients{}, fmt.Errorf("%w: b contains %v", ErrNonFiniteCoefficient, v)
		}
	}
	for _, v := range a {
		if !isFinite(v) {
			return Coefficients{}, fmt.Errorf("%w: a contains %v", ErrNonFiniteCoefficient, v)
		}
	}

	return Coefficients{
		b: append([]float64(nil), b...),
		a: append([]float64(nil), a...),
	}, nil
}

func (c Coefficients) B() []float64 { return append([]float64(nil), c.b...) }
func (c Coefficients) A() []float64 { return append([]float64(nil), c.a...) }

// IsZero reports whether c was never initialized.
func (c Coefficients) IsZero() bool {
	return len(c.b) == 0 && len(c.a) == 0
}

// Order returns the larger of the numerator and denominator degrees.
func (c Coefficients) Order() int {
	return max(len(c.b), len(c.a)) - 1
}

// Apply runs the direct-form IIR recursion
//
//	y[i] = (sum_j b[j]*x[i-j] - sum_{k>=1} a[k]*y[i-k]) / a[0]
//
// over input with zero initial conditions and returns a new slice.
func Apply(c Coefficients, input []float64) []float64 {
	out := make([]float64, len(input))
	if c.IsZero() {
		copy(out, input)
		return out
	}

	b, a := c.b, c.a
	a0 := a[0]
	for i := range input {
		acc := 0.0
		for j := 0; j < len(b) && j <= i; j++ {
			acc += b[j] * input[i-j]
		}
		for k := 1; k < len(a) && k <= i; k++ {
			acc -= a[k] * out[i-k]
		}
		out[i] = acc / a0
	}
	return out
}

// CheckFinite returns ErrNonFiniteOutput when data holds NaN or Inf.
func CheckFinite(data []float64) error {
	for i, v := range data {
		if !isFinite(v) {
			return fmt.Errorf("%w: index %d is %v", ErrNonFiniteOutput, i, v)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
