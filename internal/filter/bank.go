package filter

import (
	"fmt"
	"sync/atomic"
)

// Setting is the content of one slot. It is replaced as a whole, never edited
// in place.
type Setting struct {
	Enabled      bool
	Coefficients Coefficients
}

// Apply filters x when the setting is enabled and returns a copy of x otherwise.
func (s Setting) Apply(x []float64) []float64 {
	if !s.Enabled {
		return append([]float64(nil), x...)
	}
	return Apply(s.Coefficients, x)
}

// Bank holds the notch, low-pass and high-pass slots. Updates swap a pointer to
// a fresh Setting, so a concurrent Chain sees either the old or the new value.
type Bank struct {
	slots [numKinds]atomic.Pointer[Setting]
}

// NewBank returns a bank with every slot disabled.
func NewBank() *Bank {
	b := &Bank{}
	for i := range b.slots {
		b.slots[i].Store(&Setting{})
	}
	return b
}

// Set replaces one slot. Disabling with zero coefficients keeps the previous
// coefficients so the slot can be re-enabled later.
func (b *Bank) Set(kind Kind, enabled bool, c Coefficients) error {
	if !kind.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	if c.IsZero() {
		if enabled {
			return ErrEmptyCoefficients
		}
		c = b.slots[kind].Load().Coefficients
	} else if c.a[0] == 0 {
		// Coefficients built by hand instead of through NewCoefficients.
		return ErrZeroLeadingCoefficient
	}

	b.slots[kind].Store(&Setting{Enabled: enabled, Coefficients: c})
	return nil
}

func (b *Bank) Setting(kind Kind) Setting {
	if !kind.valid() {
		return Setting{}
	}
	return *b.slots[kind].Load()
}

// Chain captures the current content of every slot.
func (b *Bank) Chain() Chain {
	var c Chain
	for i := range b.slots {
		c.settings[i] = *b.slots[i].Load()
	}
	return c
}

// Chain is a point-in-time copy of the bank, applied in notch, low-pass,
// high-pass order.
type Chain struct {
	settings [numKinds]Setting
}

// Apply runs every enabled stage over x. The returned slice is always new.
// A non-finite result yields ErrNonFiniteOutput alongside the output.
func (c Chain) Apply(x []float64) ([]float64, error) {
	out := append([]float64(nil), x...)
	for _, s := range c.settings {
		if s.Enabled {
			out = Apply(s.Coefficients, out)
		}
	}
	return out, CheckFinite(out)
}

// Enabled lists the enabled slots in chain order.
func (c Chain) Enabled() []Kind {
	var kinds []Kind
	for i, s := range c.settings {
		if s.Enabled {
			kinds = append(kinds, Kind(i))
		}
	}
	return kinds
}

// Active reports whether any slot is enabled.
func (c Chain) Active() bool {
	return len(c.Enabled()) > 0
}
