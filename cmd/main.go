package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/biopotential-serial/internal/config"
	"sleepywoodpecker/biopotential-serial/internal/logger"
	"sleepywoodpecker/biopotential-serial/internal/monitor"
	"sleepywoodpecker/biopotential-serial/internal/processing"
	"sleepywoodpecker/biopotential-serial/internal/recorder"
	"sleepywoodpecker/biopotential-serial/internal/rserial"
	"sleepywoodpecker/biopotential-serial/internal/synth"
)

var (
	configPath string
	portName   string
	demo       bool
	recordPath string
	logFile    string
	listPorts  bool
)

var rootCmd = &cobra.Command{
	Use:   "biopotential-serial",
	Short: "Acquire, filter and record biopotential channels from a serial board",
	Long: `Reads line-delimited frames of signed 8-bit samples from a serial port,
keeps a rolling window per channel, applies the configured notch, low-pass
and high-pass filters and reports status until interrupted.

Without a board attached, --demo streams a synthetic waveform instead.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPorts {
			return printPorts(cmd.OutOrStdout())
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&portName, "port", "p", "", "serial port, overrides serial.port")
	rootCmd.Flags().BoolVar(&demo, "demo", false, "stream a synthetic waveform instead of opening a port")
	rootCmd.Flags().StringVarP(&recordPath, "record", "r", "", "record latest samples to this CSV file or directory")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "log file, overrides log.file")
	rootCmd.Flags().BoolVar(&listPorts, "list-ports", false, "list available serial ports and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err unless the pipeline already logged it.
func reportError(w io.Writer, err error) {
	var fatal *processing.FatalTransportError
	if errors.As(err, &fatal) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func printPorts(w io.Writer) error {
	ports, err := rserial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

// loadConfig reads the optional file, applies flag overrides, then
// normalizes and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("demo") {
		cfg.Demo.Enabled = demo
	}
	if flags.Changed("record") {
		cfg.Record.Path = recordPath
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	// first initialize the main logger
	log, err := logger.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a := cfg.Acquisition
	opts := []processing.Option{
		processing.WithLogger(log),
		processing.WithUpdateRate(a.UpdateRate),
		processing.WithQueueSize(a.QueueSize),
	}
	if cfg.ResyncEnabled() {
		opts = append(opts, processing.WithResync())
	}

	pipeline, err := processing.Configure(a.Channels, a.SamplingRate, a.WindowSeconds, opts...)
	if err != nil {
		return err
	}

	specs, err := cfg.FilterSpecs()
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := pipeline.DesignFilter(spec.Enabled, spec.Params); err != nil {
			return fmt.Errorf("install %v filter: %w", spec.Params.Kind, err)
		}
	}

	var rec *recorder.CSV
	if cfg.Record.Path != "" {
		rec, err = recorder.NewCSV(cfg.Record.Path, a.Channels, log)
		if err != nil {
			return err
		}
		if err := rec.Start(); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, rec.Close()) }()
	}

	source, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, source.Close()) }()

	mon := monitor.New(monitor.Config{
		SampleRate:     a.SamplingRate,
		MainsFrequency: cfg.Filters.Notch.Frequency,
		ReportInterval: time.Duration(cfg.Monitor.ReportIntervalMs) * time.Millisecond,
	}, pipeline, recorderOrNil(rec), log)
	pipeline.OnSnapshot(mon.HandleSnapshot)

	if err := pipeline.Start(ctx, source); err != nil {
		return err
	}

	// run until interrupted or the transport fails
	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("[main] received shutdown signal", zap.Stringer("signal", sig))
	case runErr = <-pipeline.Errors():
	}

	pipeline.Stop()

	stats := pipeline.Stats()
	log.Info("[main] acquisition finished",
		zap.Uint64("framesReceived", stats.FramesReceived),
		zap.Uint64("droppedFrames", stats.DroppedFrames),
		zap.Uint64("readTimeouts", stats.ReadTimeouts),
		zap.Uint64("snapshotsDispatched", stats.SnapshotsDispatched),
		zap.Uint64("snapshotsDropped", stats.SnapshotsDropped),
		zap.Float64("tickRate", mon.Rate()),
	)
	return runErr
}

func openSource(cfg *config.Config, log *zap.Logger) (io.ReadCloser, error) {
	if cfg.Demo.Enabled {
		log.Info("[main] demo mode, no serial port opened", zap.Float64("frequency", cfg.Demo.Frequency))
		return synth.New(synth.Config{
			Channels:       cfg.Acquisition.Channels,
			SampleRate:     cfg.Acquisition.SamplingRate,
			Frequency:      cfg.Demo.Frequency,
			MainsFrequency: cfg.Filters.Notch.Frequency,
			MainsAmplitude: 8,
			ReadTimeout:    time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
		})
	}

	return rserial.Open(rserial.Config{
		PortName:    cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
	}, log)
}

// recorderOrNil keeps a nil *recorder.CSV from becoming a non-nil interface.
func recorderOrNil(rec *recorder.CSV) monitor.Recorder {
	if rec == nil {
		return nil
	}
	return rec
}
