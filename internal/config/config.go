package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Filters     FiltersConfig     `yaml:"filters"`
	Demo        DemoConfig        `yaml:"demo"`
	Record      RecordConfig      `yaml:"record"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Log         LogConfig         `yaml:"log"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	Resync        *bool  `yaml:"resync"` // nil => true for real ports
}

// ---- ACQUISITION ----

type AcquisitionConfig struct {
	Channels      int     `yaml:"channels"`
	SamplingRate  float64 `yaml:"sampling_rate"`
	WindowSeconds float64 `yaml:"window_seconds"`
	UpdateRate    float64 `yaml:"update_rate"`
	QueueSize     int     `yaml:"queue_size"`
}

// ---- FILTERS ----

type FiltersConfig struct {
	Notch    NotchConfig `yaml:"notch"`
	LowPass  PassConfig  `yaml:"low_pass"`
	HighPass PassConfig  `yaml:"high_pass"`
}

type NotchConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float64 `yaml:"frequency"`
	Q         float64 `yaml:"q"`
}

type PassConfig struct {
	Enabled bool    `yaml:"enabled"`
	Family  string  `yaml:"family"` // bessel | butterworth
	Norm    string  `yaml:"norm"`   // bessel only: phase | magnitude
	Order   int     `yaml:"order"`
	Cutoff  float64 `yaml:"cutoff"`
}

// ---- DEMO / RECORD / MONITOR / LOG ----

type DemoConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float64 `yaml:"frequency"`
}

type RecordConfig struct {
	Path string `yaml:"path"` // file, or directory for a timestamped file; empty disables
}

type MonitorConfig struct {
	ReportIntervalMs int `yaml:"report_interval_ms"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Load reads a YAML file. Missing fields stay zero until Normalize.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
