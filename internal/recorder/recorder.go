package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	fileNameLayout  = "2006-01-02_15-04-05.000000"
)

var (
	ErrInvalidChannels = errors.New("recorder: channel count must be >= 1")
	ErrEmptyPath       = errors.New("recorder: empty path")
	ErrNotRecording    = errors.New("recorder: not recording")
	ErrRowWidth        = errors.New("recorder: row width does not match channel count")
)

// CSV writes one row per tick: a timestamp and the latest sample of every
// channel. Recording can be started and stopped repeatedly; each start opens
// a new file when the target is a directory.
type CSV struct {
	target   string
	channels int
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	rows   uint64
}

func NewCSV(target string, channels int, logger *zap.Logger) (*CSV, error) {
	if target == "" {
		return nil, ErrEmptyPath
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CSV{
		target:   target,
		channels: channels,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start opens the output file and writes the header. It is a no-op while
// already recording.
func (c *CSV) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		return nil
	}

	path := c.target
	if info, err := os.Stat(c.target); err == nil && info.IsDir() {
		path = filepath.Join(c.target, c.now().Format(fileNameLayout)+".csv")
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		c.logger.Error("[recorder] error opening a file", zap.Error(err), zap.String("outputFile", path))
		return err
	}

	c.file = file
	c.writer = bufio.NewWriter(file)
	c.path = path
	c.rows = 0

	fmt.Fprint(c.writer, "Timestamp")
	for i := 1; i <= c.channels; i++ {
		fmt.Fprintf(c.writer, ",Channel_%d", i)
	}
	fmt.Fprint(c.writer, "\n")

	c.logger.Info("[recorder] recording started", zap.String("outputFile", path))
	return nil
}

// Record appends one row. Samples are written as unsigned byte values.
func (c *CSV) Record(at time.Time, samples []uint8) error {
	if len(samples) != c.channels {
		return fmt.Errorf("%w: got %d, want %d", ErrRowWidth, len(samples), c.channels)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return ErrNotRecording
	}

	row := make([]byte, 0, len(TimestampLayout)+4*len(samples)+1)
	row = at.AppendFormat(row, TimestampLayout)
	for _, s := range samples {
		row = append(row, ',')
		row = strconv.AppendUint(row, uint64(s), 10)
	}
	row = append(row, '\n')

	if _, err := c.writer.Write(row); err != nil {
		return err
	}
	c.rows++
	return nil
}

// Stop flushes and closes the current file. Stopping while idle is a no-op.
func (c *CSV) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}

	err := multierr.Combine(c.writer.Flush(), c.file.Close())
	c.logger.Info("[recorder] recording stopped",
		zap.String("outputFile", c.path),
		zap.Uint64("rows", c.rows),
		zap.Error(err),
	)

	c.file = nil
	c.writer = nil
	return err
}

func (c *CSV) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file != nil
}

// Path is the file of the current or last recording.
func (c *CSV) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

func (c *CSV) Close() error {
	return c.Stop()
}
