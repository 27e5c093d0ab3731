package processing

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sleepywoodpecker/biopotential-serial/internal/filter"
	"sleepywoodpecker/biopotential-serial/internal/filter/design"
	"sleepywoodpecker/biopotential-serial/internal/ringbuffer"
	"sleepywoodpecker/biopotential-serial/internal/rserial"
)

const (
	DefaultUpdateRate = 30.0
	DefaultQueueSize  = 4
)

// State is the acquisition lifecycle. Stop holds the lifecycle lock until
// shutdown completes, so callers only ever observe Stopped or Running.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type options struct {
	updateRate float64
	queueSize  int
	logger     *zap.Logger
	resync     bool
}

type Option func(*options)

// WithUpdateRate sets the target snapshot rate in Hz. A snapshot is produced
// every floor(samplingRate/updateRate) frames, so the effective rate is never
// below the requested one.
func WithUpdateRate(hz float64) Option {
	return func(o *options) { o.updateRate = hz }
}

// WithQueueSize bounds the number of snapshots waiting for the consumer.
// When full, the oldest waiting snapshot is dropped.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResync discards bytes up to the first delimiter on every Start, for
// transports that may be joined mid-frame.
func WithResync() Option {
	return func(o *options) { o.resync = true }
}

// Pipeline owns the per-channel ring buffers and the filter slots, and runs
// the acquisition loop that keeps them current.
type Pipeline struct {
	channels     int
	samplingRate float64
	decimation   int
	queueSize    int
	resync       bool
	logger       *zap.Logger

	buffers []*ringbuffer.RingBuffer
	filters *filter.Bank
	sink    atomic.Pointer[SnapshotFunc]

	// lifecycle, guarded by mu
	mu       sync.Mutex
	state    atomic.Int32
	cancel   context.CancelFunc
	loopDone chan struct{}
	dispatch *dispatcher
	errs     chan error

	// owned by the acquisition goroutine
	sinceTick    int
	invalidSince []bool
	scratch      []float64

	framesReceived   atomic.Uint64
	droppedFrames    atomic.Uint64
	readTimeouts     atomic.Uint64
	ticks            atomic.Uint64
	snapshotsDropped atomic.Uint64
}

// Configure builds a stopped pipeline holding windowSeconds of samples per
// channel.
func Configure(channelCount int, samplingRate, windowSeconds float64, opts ...Option) (*Pipeline, error) {
	o := options{
		updateRate: DefaultUpdateRate,
		queueSize:  DefaultQueueSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if channelCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannelCount, channelCount)
	}
	if samplingRate <= 0 || math.IsNaN(samplingRate) || math.IsInf(samplingRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSamplingRate, samplingRate)
	}
	capacity := int(math.Round(samplingRate * windowSeconds))
	if windowSeconds <= 0 || capacity < 1 {
		return nil, fmt.Errorf("%w: %v s at %v Hz", ErrInvalidWindow, windowSeconds, samplingRate)
	}
	if o.updateRate <= 0 || o.updateRate > samplingRate || math.IsNaN(o.updateRate) {
		return nil, fmt.Errorf("%w: %v Hz", ErrInvalidUpdateRate, o.updateRate)
	}
	if o.queueSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, o.queueSize)
	}

	buffers := make([]*ringbuffer.RingBuffer, channelCount)
	for i := range buffers {
		rb, err := ringbuffer.New(capacity)
		if err != nil {
			return nil, err
		}
		buffers[i] = rb
	}

	return &Pipeline{
		channels:     channelCount,
		samplingRate: samplingRate,
		decimation:   decimationFor(samplingRate, o.updateRate),
		queueSize:    o.queueSize,
		resync:       o.resync,
		logger:       o.logger,
		buffers:      buffers,
		filters:      filter.NewBank(),
		errs:         make(chan error, 1),
		invalidSince: make([]bool, channelCount),
	}, nil
}

// decimationFor tolerates ratios that land a hair under an integer.
func decimationFor(samplingRate, updateRate float64) int {
	return max(1, int(math.Floor(samplingRate/updateRate+1e-9)))
}

func (p *Pipeline) Channels() int         { return p.channels }
func (p *Pipeline) SamplingRate() float64 { return p.samplingRate }
func (p *Pipeline) Capacity() int         { return p.buffers[0].Cap() }

// Decimation is the number of frames between two snapshots.
func (p *Pipeline) Decimation() int { return p.decimation }

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Start launches the acquisition loop reading frames from transport. The
// transport should return from Read within a bounded timeout; Stop waits for
// the read in flight.
func (p *Pipeline) Start(ctx context.Context, transport io.Reader) error {
	if transport == nil {
		return ErrNilTransport
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != Stopped {
		return ErrAlreadyRunning
	}
	p.reap()

	fr, err := rserial.NewFrameReader(transport, p.channels, p.logger)
	if err != nil {
		return err
	}
	if p.resync {
		fr.Resync()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d := newDispatcher(p.queueSize, p.loadSink, &p.snapshotsDropped)

	p.cancel = cancel
	p.loopDone = done
	p.dispatch = d
	p.state.Store(int32(Running))

	p.logger.Info("[pipeline] starting acquisition",
		zap.Int("channels", p.channels),
		zap.Float64("samplingRate", p.samplingRate),
		zap.Int("capacity", p.Capacity()),
		zap.Int("decimation", p.decimation),
	)

	go d.run()
	go p.run(runCtx, fr, d, done)
	return nil
}

// Stop requests shutdown and waits for the acquisition loop to exit, which
// takes at most one transport read, and for the consumer to finish the
// snapshots still queued. No consumer call happens after Stop returns, so the
// consumer must not call Stop itself. Stop is idempotent. Buffers are kept.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reap()
}

// reap cancels and waits for the previous loop and its dispatcher. Callers
// hold mu.
func (p *Pipeline) reap() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.loopDone
	<-p.dispatch.done
	p.cancel = nil
	p.loopDone = nil
	p.dispatch = nil
}

// Errors delivers fatal transport errors. At most one error is buffered.
func (p *Pipeline) Errors() <-chan error {
	return p.errs
}

// OnSnapshot registers the consumer. It is called from a dedicated goroutine,
// never from the acquisition loop, once per delivered snapshot. Passing nil
// unregisters.
func (p *Pipeline) OnSnapshot(fn SnapshotFunc) {
	if fn == nil {
		p.sink.Store(nil)
		return
	}
	p.sink.Store(&fn)
}

func (p *Pipeline) loadSink() SnapshotFunc {
	if fn := p.sink.Load(); fn != nil {
		return *fn
	}
	return nil
}

// SetFilter atomically replaces one filter slot.
func (p *Pipeline) SetFilter(kind filter.Kind, enabled bool, c filter.Coefficients) error {
	if err := p.filters.Set(kind, enabled, c); err != nil {
		return err
	}

	p.logger.Info("[pipeline] filter updated",
		zap.Stringer("kind", kind),
		zap.Bool("enabled", enabled),
		zap.Int("order", p.filters.Setting(kind).Coefficients.Order()),
	)
	return nil
}

// DesignFilter computes coefficients for params and installs them in the
// params.Kind slot. A zero SampleRate means the pipeline's sampling rate.
func (p *Pipeline) DesignFilter(enabled bool, params design.Params) error {
	if params.SampleRate == 0 {
		params.SampleRate = p.samplingRate
	}

	c, err := design.Design(params)
	if err != nil {
		return err
	}
	if err := p.SetFilter(params.Kind, enabled, c); err != nil {
		return err
	}

	p.logger.Info("[pipeline] filter designed", zap.Stringer("params", params))
	return nil
}

func (p *Pipeline) FilterSetting(kind filter.Kind) filter.Setting {
	return p.filters.Setting(kind)
}

// DroppedFrameCount is the number of malformed frames discarded so far.
func (p *Pipeline) DroppedFrameCount() uint64 {
	return p.droppedFrames.Load()
}

// Window returns a copy of one channel's buffered samples, oldest first.
func (p *Pipeline) Window(channel int) ([]uint8, error) {
	if channel < 0 || channel >= p.channels {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return p.buffers[channel].ToOrderedArray(), nil
}

type Stats struct {
	State               State
	FramesReceived      uint64
	DroppedFrames       uint64
	ReadTimeouts        uint64
	SnapshotsDispatched uint64
	SnapshotsDropped    uint64
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		State:               p.State(),
		FramesReceived:      p.framesReceived.Load(),
		DroppedFrames:       p.droppedFrames.Load(),
		ReadTimeouts:        p.readTimeouts.Load(),
		SnapshotsDispatched: p.ticks.Load(),
		SnapshotsDropped:    p.snapshotsDropped.Load(),
	}
}

// FilterSettings reports every slot in chain order.
func (p *Pipeline) FilterSettings() []filter.Setting {
	chain := make([]filter.Setting, len(filter.Kinds))
	for i, kind := range filter.Kinds {
		chain[i] = p.filters.Setting(kind)
	}
	return chain
}
