package config

import "strings"

const (
	DefaultBaudRate      = 1000000
	DefaultReadTimeoutMs = 5
	DefaultChannels      = 1
	DefaultSamplingRate  = 250.0
	DefaultWindowSeconds = 6.0
	DefaultUpdateRate    = 30.0
	DefaultQueueSize     = 4

	DefaultNotchFrequency = 50.0
	DefaultNotchQ         = 10.0
	DefaultFamily         = "bessel"
	DefaultBesselNorm     = "phase"
	DefaultPassOrder      = 2
	DefaultLowPassCutoff  = 40.0
	DefaultHighPassCutoff = 0.05

	DefaultDemoFrequency    = 2.0
	DefaultReportIntervalMs = 5000
	DefaultLogFile          = "biopotential.logs"
	DefaultLogLevel         = "info"
)

// Default returns a fully normalized configuration.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Normalize fills unset fields with defaults. It is allowed to mutate
// configuration and runs before Validate, so explicit bad values (negative
// rates, unknown families) are left for Validate to reject.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Serial
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.ReadTimeoutMs == 0 {
		s.ReadTimeoutMs = DefaultReadTimeoutMs
	}

	a := &cfg.Acquisition
	if a.Channels == 0 {
		a.Channels = DefaultChannels
	}
	if a.SamplingRate == 0 {
		a.SamplingRate = DefaultSamplingRate
	}
	if a.WindowSeconds == 0 {
		a.WindowSeconds = DefaultWindowSeconds
	}
	if a.UpdateRate == 0 {
		a.UpdateRate = DefaultUpdateRate
	}
	if a.QueueSize == 0 {
		a.QueueSize = DefaultQueueSize
	}

	n := &cfg.Filters.Notch
	if n.Frequency == 0 {
		n.Frequency = DefaultNotchFrequency
	}
	if n.Q == 0 {
		n.Q = DefaultNotchQ
	}

	normalizePass(&cfg.Filters.LowPass, DefaultLowPassCutoff)
	normalizePass(&cfg.Filters.HighPass, DefaultHighPassCutoff)

	if cfg.Demo.Frequency == 0 {
		cfg.Demo.Frequency = DefaultDemoFrequency
	}
	if cfg.Monitor.ReportIntervalMs == 0 {
		cfg.Monitor.ReportIntervalMs = DefaultReportIntervalMs
	}
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func normalizePass(p *PassConfig, cutoff float64) {
	p.Family = strings.ToLower(strings.TrimSpace(p.Family))
	if p.Family == "" {
		p.Family = DefaultFamily
	}
	p.Norm = strings.ToLower(strings.TrimSpace(p.Norm))
	if p.Norm == "" {
		p.Norm = DefaultBesselNorm
	}
	if p.Order == 0 {
		p.Order = DefaultPassOrder
	}
	if p.Cutoff == 0 {
		p.Cutoff = cutoff
	}
}

// ResyncEnabled reports whether the port should discard up to the first
// delimiter on start. Demo sources always start on a frame boundary.
func (c *Config) ResyncEnabled() bool {
	if c.Demo.Enabled {
		return false
	}
	if c.Serial.Resync == nil {
		return true
	}
	return *c.Serial.Resync
}
