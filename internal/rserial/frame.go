package rserial

import (
	"bytes"
	"errors"
	"io"

	"go.uber.org/zap"
)

const (
	Delimiter = '\n'

	readChunkSize = 256
)

// FrameReader splits a byte stream into line-delimited frames of exactly
// channels values. One Read may carry several frames; they are served from
// the pending buffer before the transport is read again.
type FrameReader struct {
	r        io.Reader
	channels int
	logger   *zap.Logger

	chunk   []byte
	pending []byte
	readErr error

	// overlong is set after a line grew past any valid length; bytes are
	// dropped until the next delimiter.
	overlong bool
	// syncing drops bytes up to the first delimiter without reporting them.
	syncing bool
}

func NewFrameReader(r io.Reader, channels int, logger *zap.Logger) (*FrameReader, error) {
	if r == nil {
		return nil, errors.New("rserial: nil reader")
	}
	if channels < 1 {
		return nil, errors.New("rserial: channels must be >= 1")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FrameReader{
		r:        r,
		channels: channels,
		logger:   logger,
		chunk:    make([]byte, readChunkSize),
		pending:  make([]byte, 0, 2*readChunkSize),
	}, nil
}

// Resync discards buffered bytes and everything up to the next delimiter, so
// that reading starts on a frame boundary.
func (f *FrameReader) Resync() {
	f.logger.Warn("[rserial] resyncing frame reader")
	f.pending = f.pending[:0]
	f.overlong = false
	f.syncing = true
}

// ReadFrame reads the next frame into dst, which must hold at least channels
// values. It performs at most one transport read per call, so a caller that
// checks for cancellation between calls observes it within one read timeout.
//
// Errors: ErrReadTimeout when the read delivered nothing, ErrIncomplete when
// it delivered bytes but no full line yet, *MalformedFrameError for a line
// that does not decode, and the transport's own error otherwise.
func (f *FrameReader) ReadFrame(dst []uint8) error {
	if ok, err := f.buffered(dst); ok {
		return err
	}
	if f.readErr != nil {
		return f.readErr
	}

	n, err := f.r.Read(f.chunk)
	f.pending = append(f.pending, f.chunk[:n]...)
	if err != nil && Classify(err) != ClassTimeout {
		// Bytes delivered alongside an error are still served first.
		f.readErr = err
	}

	if ok, ferr := f.buffered(dst); ok {
		return ferr
	}
	switch {
	case err != nil:
		return err
	case n == 0:
		return ErrReadTimeout
	default:
		return ErrIncomplete
	}
}

func (f *FrameReader) buffered(dst []uint8) (bool, error) {
	for {
		idx := bytes.IndexByte(f.pending, Delimiter)
		if idx < 0 {
			if len(f.pending) > f.maxLineLength() {
				f.pending = f.pending[:0]
				if !f.syncing {
					f.overlong = true
				}
			}
			return false, nil
		}

		line := f.pending[:idx]
		var err error
		skip := false
		switch {
		case f.syncing:
			f.syncing = false
			skip = true
		case f.overlong:
			f.overlong = false
			err = f.malformed(line, "line too long")
		default:
			err = DecodeFrame(line, f.channels, dst)
		}

		f.pending = append(f.pending[:0], f.pending[idx+1:]...)
		if !skip {
			return true, err
		}
	}
}

// maxLineLength is the longest line that can still decode: one byte per
// channel plus an optional carriage return.
func (f *FrameReader) maxLineLength() int {
	return f.channels + 1
}

func (f *FrameReader) malformed(line []byte, reason string) error {
	return &MalformedFrameError{
		ByteSequence: append([]byte(nil), line...),
		Want:         f.channels,
		Reason:       reason,
	}
}

// DecodeFrame decodes one line (without its delimiter) into dst. Each byte is
// one channel's signed 8-bit value, stored as its unsigned bit pattern. A
// trailing carriage return after a full frame is ignored.
func DecodeFrame(line []byte, channels int, dst []uint8) error {
	if n := len(line); n == channels+1 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) != channels {
		return &MalformedFrameError{
			ByteSequence: append([]byte(nil), line...),
			Want:         channels,
			Reason:       "wrong length",
		}
	}
	copy(dst[:channels], line)
	return nil
}

// EncodeFrame appends samples and the delimiter to dst.
func EncodeFrame(dst []byte, samples []uint8) []byte {
	dst = append(dst, samples...)
	return append(dst, Delimiter)
}
