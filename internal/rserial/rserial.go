// r in rserial stands for "robust"
package rserial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudRate    = 1000000
	DefaultReadTimeout = 5 * time.Millisecond
)

// Config describes how to open the port. The pipeline itself never opens
// anything: it receives the resulting Port as an io.Reader.
type Config struct {
	PortName    string
	BaudRate    int
	ReadTimeout time.Duration
}

// Port is an open serial port with a bounded read timeout. A Read that times
// out returns (0, nil).
type Port struct {
	serial.Port
	portName string
	logger   *zap.Logger
}

func Open(cfg Config, logger *zap.Logger) (*Port, error) {
	if cfg.PortName == "" {
		return nil, errors.New("rserial: port name required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	port, err := serial.Open(cfg.PortName, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("rserial: open %s: %w", cfg.PortName, err)
	}

	r := &Port{Port: port, portName: cfg.PortName, logger: logger}
	if err := r.initialize(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}

	logger.Info("[rserial] opened serial port",
		zap.String("portName", cfg.PortName),
		zap.Int("baudRate", cfg.BaudRate),
		zap.Duration("readTimeout", cfg.ReadTimeout),
	)
	return r, nil
}

func (r *Port) initialize(readTimeout time.Duration) error {
	if err := r.SetReadTimeout(readTimeout); err != nil {
		return fmt.Errorf("rserial: set read timeout on %s: %w", r.portName, err)
	}
	if err := r.ResetInputBuffer(); err != nil {
		return fmt.Errorf("rserial: reset input buffer on %s: %w", r.portName, err)
	}
	return nil
}

func (r *Port) Name() string {
	return r.portName
}

func (r *Port) Close() error {
	r.logger.Info("[rserial] closing serial port", zap.String("portName", r.portName))
	return r.Port.Close()
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("rserial: list ports: %w", err)
	}
	return ports, nil
}
