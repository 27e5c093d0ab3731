// Package synth produces a synthetic frame stream for running without a
// device attached.
package synth

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
	"time"

	"sleepywoodpecker/biopotential-serial/internal/rserial"
)

const (
	DefaultAmplitude   = 64.0
	DefaultReadTimeout = 5 * time.Millisecond

	// centre of the unsigned 8-bit range
	baseline = 128.0
)

var (
	ErrInvalidChannels   = errors.New("synth: channel count must be between 1 and 254")
	ErrInvalidSampleRate = errors.New("synth: sample rate must be > 0")
	ErrInvalidFrequency  = errors.New("synth: frequency must be >= 0")
)

type Config struct {
	Channels   int
	SampleRate float64

	// Frequency and Amplitude shape the main sine; channel n is phase shifted
	// by n/Channels of a period.
	Frequency float64
	Amplitude float64

	// optional interference added to every channel
	MainsFrequency float64
	MainsAmplitude float64

	// ReadTimeout bounds how long Read waits for the next frame to become due.
	ReadTimeout time.Duration
	// Unpaced emits as many frames as fit in each Read, ignoring wall time.
	Unpaced bool
}

// Source implements io.ReadCloser over an endless stream of encoded frames.
type Source struct {
	cfg       Config
	frameSize int
	position  int
	start     time.Time
	closed    atomic.Bool
	now       func() time.Time
	sleep     func(time.Duration)
	frame     []uint8
}

var _ io.ReadCloser = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	if cfg.Channels < 1 || cfg.Channels > 254 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, cfg.Channels)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, cfg.SampleRate)
	}
	if cfg.Frequency < 0 || cfg.MainsFrequency < 0 {
		return nil, ErrInvalidFrequency
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = DefaultAmplitude
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return &Source{
		cfg:       cfg,
		frameSize: cfg.Channels + 1,
		now:       time.Now,
		sleep:     time.Sleep,
		frame:     make([]uint8, cfg.Channels),
	}, nil
}

// Sample is the value of channel ch at frame position pos. It never equals
// the frame delimiter.
func (s *Source) Sample(pos, ch int) uint8 {
	t := float64(pos) / s.cfg.SampleRate
	phase := float64(ch) / float64(s.cfg.Channels)

	v := baseline + s.cfg.Amplitude*math.Sin(2*math.Pi*(s.cfg.Frequency*t+phase))
	if s.cfg.MainsAmplitude != 0 {
		v += s.cfg.MainsAmplitude * math.Sin(2*math.Pi*s.cfg.MainsFrequency*t)
	}

	v = math.Round(math.Max(0, math.Min(255, v)))
	if v == rserial.Delimiter {
		v++
	}
	return uint8(v)
}

// Read fills p with whole frames. Paced sources return (0, nil) when no frame
// is due within the read timeout, the same way an idle serial port does.
func (s *Source) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, os.ErrClosed
	}

	room := len(p) / s.frameSize
	if room == 0 {
		return 0, io.ErrShortBuffer
	}

	n := room
	if !s.cfg.Unpaced {
		n = min(room, s.due())
		if n == 0 {
			s.sleep(s.untilNext())
			n = min(room, s.due())
		}
	}

	buf := p[:0]
	for i := 0; i < n; i++ {
		for ch := range s.frame {
			s.frame[ch] = s.Sample(s.position, ch)
		}
		buf = rserial.EncodeFrame(buf, s.frame)
		s.position++
	}
	return len(buf), nil
}

// due is the number of frames the wall clock says should have been sent.
func (s *Source) due() int {
	now := s.now()
	if s.start.IsZero() {
		s.start = now
	}

	expected := int(now.Sub(s.start).Seconds()*s.cfg.SampleRate) + 1
	return max(0, expected-s.position)
}

func (s *Source) untilNext() time.Duration {
	next := s.start.Add(time.Duration(float64(s.position) / s.cfg.SampleRate * float64(time.Second)))
	return min(s.cfg.ReadTimeout, max(0, next.Sub(s.now())))
}

// Position is the number of frames emitted so far.
func (s *Source) Position() int {
	return s.position
}

func (s *Source) Close() error {
	s.closed.Store(true)
	return nil
}
