package monitor

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sleepywoodpecker/biopotential-serial/internal/filter"
	"sleepywoodpecker/biopotential-serial/internal/processing"
)

type fakeRecorder struct {
	active bool
	err    error
	rows   [][]uint8
}

func (f *fakeRecorder) Active() bool { return f.active }

func (f *fakeRecorder) Record(_ time.Time, samples []uint8) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, samples)
	return nil
}

type fakeStats processing.Stats

func (f fakeStats) Stats() processing.Stats { return processing.Stats(f) }

func sine(n int, freq, sr float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 20*math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	return out
}

func TestMonitor_RateEveryFiftyTicks(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	clock := time.Unix(100, 0)
	m.now = func() time.Time { return clock }

	// first tick anchors the clock, then 50 ticks 20ms apart
	m.HandleSnapshot(processing.Snapshot{})
	for i := 0; i < 49; i++ {
		clock = clock.Add(20 * time.Millisecond)
		m.HandleSnapshot(processing.Snapshot{})
	}
	if m.Rate() != 0 {
		t.Fatalf("rate before a full window = %v", m.Rate())
	}

	clock = clock.Add(20 * time.Millisecond)
	m.HandleSnapshot(processing.Snapshot{})
	if got := m.Rate(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("rate=%v, want 50", got)
	}
}

func TestMonitor_ForwardsToActiveRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	m := New(Config{}, nil, rec, nil)

	m.HandleSnapshot(processing.Snapshot{RawLatest: []uint8{1}})
	rec.active = true
	m.HandleSnapshot(processing.Snapshot{RawLatest: []uint8{2}})
	m.HandleSnapshot(processing.Snapshot{RawLatest: []uint8{3}})

	if len(rec.rows) != 2 || rec.rows[0][0] != 2 || rec.rows[1][0] != 3 {
		t.Fatalf("rows=%v", rec.rows)
	}
}

func TestMonitor_RecorderFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := &fakeRecorder{active: true, err: errors.New("disk full")}
	m := New(Config{}, nil, rec, zap.New(core))

	for i := 0; i < 5; i++ {
		m.HandleSnapshot(processing.Snapshot{RawLatest: []uint8{1}})
	}

	if n := logs.FilterMessage("[monitor] error writing recording row").Len(); n != 1 {
		t.Fatalf("logged %d times, want 1", n)
	}
}

func TestMonitor_StatusReport(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	stats := fakeStats{FramesReceived: 1234, SnapshotsDropped: 2}
	m := New(Config{SampleRate: 250, MainsFrequency: 50, ReportInterval: time.Second}, stats, nil, zap.New(core))
	clock := time.Unix(0, 0)
	m.now = func() time.Time { return clock }

	s := processing.Snapshot{
		Tick:          7,
		Filtered:      [][]float64{sine(250, 10, 250)},
		RawLatest:     []uint8{100},
		DroppedFrames: 3,
		Filters:       []filter.Kind{filter.Notch},
	}
	m.HandleSnapshot(s)
	clock = clock.Add(500 * time.Millisecond)
	m.HandleSnapshot(s)

	entries := logs.FilterMessage("[monitor] status").All()
	if len(entries) != 1 {
		t.Fatalf("got %d status lines, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["droppedFrames"] != uint64(3) || fields["framesReceived"] != uint64(1234) || fields["snapshotsDropped"] != uint64(2) {
		t.Fatalf("fields=%v", fields)
	}
	if fields["dominantHz"] != 10.0 {
		t.Fatalf("dominantHz=%v, want 10", fields["dominantHz"])
	}
	if p, ok := fields["mainsPower"].(float64); !ok || p > 1e-6 {
		t.Fatalf("mainsPower=%v, want ~0 for a pure 10 Hz tone", fields["mainsPower"])
	}
}

func TestMonitor_StatusSkipsSpectrumForInvalidChannel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := New(Config{SampleRate: 250, ReportInterval: time.Nanosecond}, nil, nil, zap.New(core))

	m.HandleSnapshot(processing.Snapshot{
		Filtered: [][]float64{nil},
		Warnings: []processing.ChannelWarning{{Channel: 0, Err: filter.ErrNonFiniteOutput}},
	})

	entries := logs.FilterMessage("[monitor] status").All()
	if len(entries) != 1 {
		t.Fatalf("got %d status lines", len(entries))
	}
	fields := entries[0].ContextMap()
	if _, ok := fields["dominantHz"]; ok {
		t.Fatal("spectrum reported for an invalid channel")
	}
	if fields["invalidTicks"] != uint64(1) {
		t.Fatalf("invalidTicks=%v", fields["invalidTicks"])
	}
}
