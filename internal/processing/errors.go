package processing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChannelCount = errors.New("processing: channel count must be >= 1")
	ErrInvalidSamplingRate = errors.New("processing: sampling rate must be > 0")
	ErrInvalidWindow       = errors.New("processing: window must hold at least one sample")
	ErrInvalidUpdateRate   = errors.New("processing: update rate must be > 0 and <= sampling rate")
	ErrInvalidQueueSize    = errors.New("processing: dispatch queue size must be >= 1")
	ErrInvalidChannel      = errors.New("processing: channel index out of range")

	ErrAlreadyRunning = errors.New("processing: acquisition already running")
	ErrNilTransport   = errors.New("processing: nil transport")
)

// FatalTransportError is reported once on Errors() when the transport fails
// in a way that stops acquisition (port closed, device gone).
type FatalTransportError struct {
	Err error
}

func (e *FatalTransportError) Error() string {
	return fmt.Sprintf("acquisition stopped: transport failed: %v", e.Err)
}

func (e *FatalTransportError) Unwrap() error {
	return e.Err
}

// ChannelWarning marks one channel of one snapshot as unusable, typically
// because the filter chain produced NaN or Inf.
type ChannelWarning struct {
	Channel int
	Err     error
}

func (w ChannelWarning) Error() string {
	return fmt.Sprintf("channel %d: %v", w.Channel, w.Err)
}

func (w ChannelWarning) Unwrap() error {
	return w.Err
}
