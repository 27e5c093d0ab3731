package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"sleepywoodpecker/biopotential-serial/internal/filter"
	"sleepywoodpecker/biopotential-serial/internal/filter/design"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// TRANSPORT
	// ------------------------------------------------------------

	if !cfg.Demo.Enabled && cfg.Serial.Port == "" {
		return fmt.Errorf("serial.port is required unless demo mode is enabled")
	}
	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be > 0, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeoutMs <= 0 {
		return fmt.Errorf("serial.read_timeout_ms must be > 0, got %d", cfg.Serial.ReadTimeoutMs)
	}

	// ------------------------------------------------------------
	// ACQUISITION GEOMETRY
	// ------------------------------------------------------------

	a := cfg.Acquisition
	if a.Channels < 1 {
		return fmt.Errorf("acquisition.channels must be >= 1, got %d", a.Channels)
	}
	if a.SamplingRate <= 0 {
		return fmt.Errorf("acquisition.sampling_rate must be > 0, got %v", a.SamplingRate)
	}
	if a.WindowSeconds <= 0 || a.WindowSeconds*a.SamplingRate < 1 {
		return fmt.Errorf(
			"acquisition.window_seconds=%v holds no sample at %v Hz",
			a.WindowSeconds,
			a.SamplingRate,
		)
	}
	if a.UpdateRate <= 0 || a.UpdateRate > a.SamplingRate {
		return fmt.Errorf(
			"acquisition.update_rate must be in (0, %v], got %v",
			a.SamplingRate,
			a.UpdateRate,
		)
	}
	if a.QueueSize < 1 {
		return fmt.Errorf("acquisition.queue_size must be >= 1, got %d", a.QueueSize)
	}

	// ------------------------------------------------------------
	// FILTERS (validated even when disabled, so enabling later works)
	// ------------------------------------------------------------

	specs, err := cfg.FilterSpecs()
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := s.Params.Validate(); err != nil {
			return fmt.Errorf("filters.%s: %w", configKey(s.Params.Kind), err)
		}
	}

	// ------------------------------------------------------------
	// AMBIENT
	// ------------------------------------------------------------

	if cfg.Demo.Enabled && (cfg.Demo.Frequency <= 0 || cfg.Demo.Frequency >= a.SamplingRate/2) {
		return fmt.Errorf("demo.frequency must be in (0, %v), got %v", a.SamplingRate/2, cfg.Demo.Frequency)
	}
	if cfg.Monitor.ReportIntervalMs < 0 {
		return fmt.Errorf("monitor.report_interval_ms must be >= 0, got %d", cfg.Monitor.ReportIntervalMs)
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// FilterSpec pairs a design with its configured enabled flag.
type FilterSpec struct {
	Enabled bool
	Params  design.Params
}

// FilterSpecs converts the filter section into design parameters in chain
// order. It fails only on an unknown family or Bessel normalization name.
func (c *Config) FilterSpecs() ([]FilterSpec, error) {
	sr := c.Acquisition.SamplingRate
	n := c.Filters.Notch

	specs := []FilterSpec{{
		Enabled: n.Enabled,
		Params:  design.Params{Kind: filter.Notch, Frequency: n.Frequency, Q: n.Q, SampleRate: sr},
	}}

	for _, pc := range []struct {
		kind filter.Kind
		cfg  PassConfig
	}{
		{filter.LowPass, c.Filters.LowPass},
		{filter.HighPass, c.Filters.HighPass},
	} {
		family, err := design.ParseFamily(pc.cfg.Family)
		if err != nil {
			return nil, fmt.Errorf("filters.%s.family: %w", configKey(pc.kind), err)
		}
		norm, err := design.ParseBesselNorm(pc.cfg.Norm)
		if err != nil {
			return nil, fmt.Errorf("filters.%s.norm: %w", configKey(pc.kind), err)
		}
		specs = append(specs, FilterSpec{
			Enabled: pc.cfg.Enabled,
			Params: design.Params{
				Kind:       pc.kind,
				Family:     family,
				BesselNorm: norm,
				Order:      pc.cfg.Order,
				Frequency:  pc.cfg.Cutoff,
				SampleRate: sr,
			},
		})
	}

	return specs, nil
}

func configKey(k filter.Kind) string {
	switch k {
	case filter.LowPass:
		return "low_pass"
	case filter.HighPass:
		return "high_pass"
	default:
		return k.String()
	}
}
