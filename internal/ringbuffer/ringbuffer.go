// Package ringbuffer holds the most recent window of samples for one channel.
package ringbuffer

import (
	"errors"
	"sync"
)

var ErrInvalidCapacity = errors.New("ringbuffer: capacity must be > 0")

// RingBuffer is a fixed-capacity circular store of 8-bit samples.
// When full, each Push overwrites the oldest sample.
//
// A RingBuffer has a single writer. The mutex is held only for the duration of
// a push or a copy, so readers never see a half-written window and never keep a
// reference into the backing array.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []uint8
	head int // next write position
	size int // number of valid samples
}

func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	return &RingBuffer{buf: make([]uint8, capacity)}, nil
}

// Push appends a sample, evicting the oldest one once the buffer is full.
func (r *RingBuffer) Push(sample uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = sample
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// ToOrderedArray returns a copy of the held samples, oldest first.
func (r *RingBuffer) ToOrderedArray() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint8, r.size)
	r.copyOrdered(out)
	return out
}

// CopyFloats writes the held samples, oldest first, into dst as float64 values
// and returns the filled slice. dst is reallocated when it is too short.
func (r *RingBuffer) CopyFloats(dst []float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cap(dst) < r.size {
		dst = make([]float64, r.size)
	}
	dst = dst[:r.size]

	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		dst[i] = float64(r.buf[(start+i)%len(r.buf)])
	}
	return dst
}

// Latest returns the most recently pushed sample. ok is false while empty.
func (r *RingBuffer) Latest() (sample uint8, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return 0, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.size
}

func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

func (r *RingBuffer) copyOrdered(dst []uint8) {
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	n := copy(dst, r.buf[start:min(start+r.size, len(r.buf))])
	copy(dst[n:], r.buf[:r.size-n])
}
