package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"sleepywoodpecker/biopotential-serial/internal/processing"
	"sleepywoodpecker/biopotential-serial/internal/spectrum"
)

// rate is recomputed every rateWindow ticks
const rateWindow = 50

// minDominantFrequency skips the DC region when looking for the strongest
// component.
const minDominantFrequency = 0.5

type Recorder interface {
	Active() bool
	Record(at time.Time, samples []uint8) error
}

type StatsSource interface {
	Stats() processing.Stats
}

type Config struct {
	SampleRate     float64
	MainsFrequency float64
	ReportInterval time.Duration // zero disables periodic status lines
}

// Monitor is the snapshot consumer used by the CLI: it tracks the tick rate,
// forwards rows to the recorder and logs a periodic status line.
type Monitor struct {
	cfg      Config
	stats    StatsSource
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	calls        int
	lastUpdate   time.Time
	rate         float64
	lastReport   time.Time
	invalidTicks uint64
	recordFailed bool
}

func New(cfg Config, stats StatsSource, recorder Recorder, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:      cfg,
		stats:    stats,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleSnapshot has the processing.SnapshotFunc signature.
func (m *Monitor) HandleSnapshot(s processing.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.countTick(now)
	if len(s.Warnings) > 0 {
		m.invalidTicks++
	}

	if m.recorder != nil && m.recorder.Active() {
		if err := m.recorder.Record(s.At, s.RawLatest); err != nil {
			if !m.recordFailed {
				m.logger.Warn("[monitor] error writing recording row", zap.Error(err))
			}
			m.recordFailed = true
		} else {
			m.recordFailed = false
		}
	}

	if m.cfg.ReportInterval > 0 && now.Sub(m.lastReport) >= m.cfg.ReportInterval {
		m.lastReport = now
		m.report(s)
	}
}

func (m *Monitor) countTick(now time.Time) {
	if m.lastUpdate.IsZero() {
		m.lastUpdate = now
		return
	}

	m.calls++
	if m.calls >= rateWindow {
		if dt := now.Sub(m.lastUpdate).Seconds(); dt > 0 {
			m.rate = rateWindow / dt
		}
		m.calls = 0
		m.lastUpdate = now
	}
}

// Rate is the snapshot rate in Hz over the last complete window of ticks.
func (m *Monitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *Monitor) report(s processing.Snapshot) {
	fields := []zap.Field{
		zap.Uint64("tick", s.Tick),
		zap.Float64("tickRate", m.rate),
		zap.Uint64("droppedFrames", s.DroppedFrames),
		zap.Uint64("invalidTicks", m.invalidTicks),
		zap.Int("filters", len(s.Filters)),
	}
	if m.stats != nil {
		st := m.stats.Stats()
		fields = append(fields,
			zap.Uint64("framesReceived", st.FramesReceived),
			zap.Uint64("readTimeouts", st.ReadTimeouts),
			zap.Uint64("snapshotsDropped", st.SnapshotsDropped),
		)
	}
	fields = append(fields, m.spectralFields(s)...)

	m.logger.Info("[monitor] status", fields...)
}

func (m *Monitor) spectralFields(s processing.Snapshot) []zap.Field {
	if !s.Valid(0) || m.cfg.SampleRate <= 0 || len(s.Filtered[0]) < 2 {
		return nil
	}

	spec, err := spectrum.PowerSpectrum(s.Filtered[0], m.cfg.SampleRate)
	if err != nil {
		m.logger.Debug("[monitor] spectrum unavailable", zap.Error(err))
		return nil
	}

	freq, _ := spec.Dominant(minDominantFrequency)
	fields := []zap.Field{zap.Float64("dominantHz", freq)}

	if m.cfg.MainsFrequency > 0 && m.cfg.MainsFrequency < m.cfg.SampleRate/2 {
		if p, err := spectrum.BandPower(spectrum.RemoveMean(s.Filtered[0]), m.cfg.MainsFrequency, m.cfg.SampleRate); err == nil {
			fields = append(fields, zap.Float64("mainsPower", p))
		}
	}
	return fields
}
