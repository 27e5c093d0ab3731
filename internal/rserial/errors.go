package rserial

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.bug.st/serial"
)

var (
	// ErrReadTimeout is returned when a read finished without delivering a byte.
	ErrReadTimeout = errors.New("rserial: read timed out")
	// ErrIncomplete is returned when a read delivered part of a frame.
	ErrIncomplete = errors.New("rserial: incomplete frame")
)

// MalformedFrameError reports a line that could not be decoded into a Frame.
type MalformedFrameError struct {
	ByteSequence []byte
	Want         int
	Reason       string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("[rserial] malformed frame (%s, want %d values): %v", e.Reason, e.Want, e.ByteSequence)
}

// Class tells the acquisition loop what to do with a read error.
type Class int

const (
	ClassNone Class = iota
	// ClassIncomplete means more bytes are needed; read again.
	ClassIncomplete
	// ClassTimeout errors are retried silently.
	ClassTimeout
	// ClassMalformed errors drop one frame and continue.
	ClassMalformed
	// ClassFatal errors mean the device is gone; the loop stops.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassIncomplete:
		return "incomplete"
	case ClassTimeout:
		return "timeout"
	case ClassMalformed:
		return "malformed"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

type timeoutError interface {
	Timeout() bool
}

// Classify sorts err into one of the classes above. Anything that is not
// recognisably a timeout or a framing problem is treated as fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	if errors.Is(err, ErrIncomplete) {
		return ClassIncomplete
	}

	var malformed *MalformedFrameError
	if errors.As(err, &malformed) {
		return ClassMalformed
	}

	if errors.Is(err, ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ClassTimeout
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return ClassFatal
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return ClassFatal
	}

	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return ClassTimeout
	}

	return ClassFatal
}
