package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sleepywoodpecker/biopotential-serial/internal/filter"
	"sleepywoodpecker/biopotential-serial/internal/filter/design"
)

// helper to build a normalized demo config quickly
func demoConfig() *Config {
	cfg := &Config{Demo: DemoConfig{Enabled: true}}
	Normalize(cfg)
	return cfg
}

// ---- tests ----

func TestNormalize_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Serial.BaudRate != 1000000 || cfg.Serial.ReadTimeoutMs != 5 {
		t.Fatalf("serial defaults: %+v", cfg.Serial)
	}
	a := cfg.Acquisition
	if a.Channels != 1 || a.SamplingRate != 250 || a.WindowSeconds != 6 || a.UpdateRate != 30 || a.QueueSize != 4 {
		t.Fatalf("acquisition defaults: %+v", a)
	}
	f := cfg.Filters
	if f.Notch.Enabled || f.LowPass.Enabled || f.HighPass.Enabled {
		t.Fatal("filters must start disabled")
	}
	if f.Notch.Frequency != 50 || f.Notch.Q != 10 {
		t.Fatalf("notch defaults: %+v", f.Notch)
	}
	if f.LowPass != (PassConfig{Family: "bessel", Norm: "phase", Order: 2, Cutoff: 40}) {
		t.Fatalf("low-pass defaults: %+v", f.LowPass)
	}
	if f.HighPass != (PassConfig{Family: "bessel", Norm: "phase", Order: 2, Cutoff: 0.05}) {
		t.Fatalf("high-pass defaults: %+v", f.HighPass)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Acquisition: AcquisitionConfig{Channels: 4, SamplingRate: 500},
		Filters:     FiltersConfig{LowPass: PassConfig{Family: " Butterworth ", Order: 4, Cutoff: 30}},
	}
	Normalize(cfg)

	if cfg.Acquisition.Channels != 4 || cfg.Acquisition.SamplingRate != 500 {
		t.Fatalf("explicit acquisition values overwritten: %+v", cfg.Acquisition)
	}
	if cfg.Filters.LowPass != (PassConfig{Family: "butterworth", Norm: "phase", Order: 4, Cutoff: 30}) {
		t.Fatalf("low-pass: %+v", cfg.Filters.LowPass)
	}
}

func TestNormalize_Nil(t *testing.T) {
	Normalize(nil)
}

func TestValidate_DemoDefaultsAreValid(t *testing.T) {
	if err := Validate(demoConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing port", func(c *Config) { c.Demo.Enabled = false }, "serial.port"},
		{"negative baud", func(c *Config) { c.Serial.BaudRate = -1 }, "baud_rate"},
		{"zero channels", func(c *Config) { c.Acquisition.Channels = -1 }, "channels"},
		{"negative rate", func(c *Config) { c.Acquisition.SamplingRate = -250 }, "sampling_rate"},
		{"tiny window", func(c *Config) { c.Acquisition.WindowSeconds = 0.001 }, "window_seconds"},
		{"update above rate", func(c *Config) { c.Acquisition.UpdateRate = 500 }, "update_rate"},
		{"zero queue", func(c *Config) { c.Acquisition.QueueSize = -2 }, "queue_size"},
		{"notch at nyquist", func(c *Config) { c.Filters.Notch.Frequency = 125 }, "filters.notch"},
		{"low-pass above nyquist", func(c *Config) { c.Filters.LowPass.Cutoff = 200 }, "filters.low_pass"},
		{"bessel order", func(c *Config) { c.Filters.HighPass.Order = 11 }, "filters.high_pass"},
		{"unknown family", func(c *Config) { c.Filters.LowPass.Family = "chebyshev" }, "filters.low_pass.family"},
		{"unknown bessel norm", func(c *Config) { c.Filters.HighPass.Norm = "delay" }, "filters.high_pass.norm"},
		{"demo frequency", func(c *Config) { c.Demo.Frequency = 130 }, "demo.frequency"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := demoConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_WrapsDesignErrors(t *testing.T) {
	cfg := demoConfig()
	cfg.Filters.LowPass.Cutoff = 125

	if err := Validate(cfg); !errors.Is(err, design.ErrCutoffAboveNyquist) {
		t.Fatalf("err=%v, want ErrCutoffAboveNyquist", err)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := demoConfig()
	before := *cfg

	_ = Validate(cfg)

	if *cfg != before {
		t.Fatal("Validate mutated the configuration")
	}
}

func TestFilterSpecs_ChainOrder(t *testing.T) {
	cfg := demoConfig()
	cfg.Filters.Notch.Enabled = true

	specs, err := cfg.FilterSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 3 {
		t.Fatalf("got %d specs", len(specs))
	}
	for i, kind := range filter.Kinds {
		if specs[i].Params.Kind != kind {
			t.Fatalf("spec %d kind=%v, want %v", i, specs[i].Params.Kind, kind)
		}
		if specs[i].Params.SampleRate != 250 {
			t.Fatalf("spec %d sample rate=%v", i, specs[i].Params.SampleRate)
		}
	}
	if !specs[0].Enabled || specs[1].Enabled || specs[2].Enabled {
		t.Fatalf("enabled flags wrong: %+v", specs)
	}
	if specs[1].Params.Family != design.Bessel || specs[1].Params.BesselNorm != design.BesselPhase || specs[1].Params.Order != 2 || specs[1].Params.Frequency != 40 {
		t.Fatalf("low-pass params: %+v", specs[1].Params)
	}
}

func TestResyncEnabled(t *testing.T) {
	off := false
	cfg := Default()
	if !cfg.ResyncEnabled() {
		t.Fatal("real ports resync by default")
	}
	cfg.Serial.Resync = &off
	if cfg.ResyncEnabled() {
		t.Fatal("explicit resync: false ignored")
	}
	if demoConfig().ResyncEnabled() {
		t.Fatal("demo source never needs resync")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
serial:
  port: /dev/ttyUSB0
acquisition:
  channels: 2
  sampling_rate: 500
filters:
  notch:
    enabled: true
    frequency: 60
  low_pass:
    enabled: true
    family: butterworth
    order: 4
    cutoff: 100
record:
  path: /tmp/rec
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Acquisition.Channels != 2 || cfg.Acquisition.SamplingRate != 500 {
		t.Fatalf("loaded: %+v", cfg)
	}
	if !cfg.Filters.Notch.Enabled || cfg.Filters.Notch.Frequency != 60 || cfg.Filters.Notch.Q != 10 {
		t.Fatalf("notch: %+v", cfg.Filters.Notch)
	}
	if cfg.Filters.LowPass != (PassConfig{Enabled: true, Family: "butterworth", Norm: "phase", Order: 4, Cutoff: 100}) {
		t.Fatalf("low-pass: %+v", cfg.Filters.LowPass)
	}
	if cfg.Record.Path != "/tmp/rec" {
		t.Fatalf("record: %+v", cfg.Record)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want ErrNotExist", err)
	}
	if _, err := Parse([]byte("acquisition: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
