package processing

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sleepywoodpecker/biopotential-serial/internal/filter"
)

// Snapshot is one display tick: the filtered window of every channel plus the
// newest raw sample per channel. Slices are owned by the receiver.
type Snapshot struct {
	Tick uint64
	At   time.Time

	// Filtered[ch] is the whole window of channel ch, oldest first, after the
	// enabled filters. It is nil for channels listed in Warnings.
	Filtered  [][]float64
	RawLatest []uint8

	DroppedFrames uint64
	Filters       []filter.Kind
	Warnings      []ChannelWarning
}

// Valid reports whether channel ch carries usable filtered data.
func (s Snapshot) Valid(ch int) bool {
	return ch >= 0 && ch < len(s.Filtered) && s.Filtered[ch] != nil
}

type SnapshotFunc func(Snapshot)

// takeSnapshot copies every buffer and filters it with one consistent view of
// the filter slots. The window is staged in p.scratch, which is reused across
// ticks; only the returned slices escape to the consumer.
func (p *Pipeline) takeSnapshot() Snapshot {
	chain := p.filters.Chain()

	s := Snapshot{
		Tick:          p.ticks.Add(1),
		At:            time.Now(),
		Filtered:      make([][]float64, p.channels),
		RawLatest:     make([]uint8, p.channels),
		DroppedFrames: p.droppedFrames.Load(),
		Filters:       chain.Enabled(),
	}

	for ch, buf := range p.buffers {
		s.RawLatest[ch], _ = buf.Latest()

		p.scratch = buf.CopyFloats(p.scratch)
		if !chain.Active() {
			s.Filtered[ch] = append([]float64(nil), p.scratch...)
			p.markValid(ch)
			continue
		}

		out, err := chain.Apply(p.scratch)
		if err != nil {
			s.Warnings = append(s.Warnings, ChannelWarning{Channel: ch, Err: err})
			p.markInvalid(ch, err)
			continue
		}
		s.Filtered[ch] = out
		p.markValid(ch)
	}

	return s
}

func (p *Pipeline) markInvalid(ch int, err error) {
	if p.invalidSince[ch] {
		return
	}
	p.invalidSince[ch] = true
	p.logger.Warn("[sampler] filtered output not finite, channel marked invalid",
		zap.Int("channel", ch),
		zap.Error(err),
	)
}

func (p *Pipeline) markValid(ch int) {
	if !p.invalidSince[ch] {
		return
	}
	p.invalidSince[ch] = false
	p.logger.Info("[sampler] channel output finite again", zap.Int("channel", ch))
}

// dispatcher hands snapshots to the consumer on its own goroutine. The queue
// is bounded and drops the oldest pending snapshot, so a slow consumer never
// blocks acquisition.
type dispatcher struct {
	queue   chan Snapshot
	sink    func() SnapshotFunc
	dropped *atomic.Uint64
	done    chan struct{}
}

func newDispatcher(size int, sink func() SnapshotFunc, dropped *atomic.Uint64) *dispatcher {
	return &dispatcher{
		queue:   make(chan Snapshot, size),
		sink:    sink,
		dropped: dropped,
		done:    make(chan struct{}),
	}
}

// publish must only be called from one goroutine.
func (d *dispatcher) publish(s Snapshot) {
	for {
		select {
		case d.queue <- s:
			return
		default:
		}

		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
		}
	}
}

func (d *dispatcher) run() {
	defer close(d.done)

	for s := range d.queue {
		if fn := d.sink(); fn != nil {
			fn(s)
		}
	}
}

// close stops accepting snapshots. Pending ones are still delivered.
func (d *dispatcher) close() {
	close(d.queue)
}
