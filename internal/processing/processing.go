package processing

import (
	"context"

	"go.uber.org/zap"

	"sleepywoodpecker/biopotential-serial/internal/rserial"
)

// run is the acquisition loop. It owns sinceTick and invalidSince, and is the
// only writer of the ring buffers.
func (p *Pipeline) run(ctx context.Context, fr *rserial.FrameReader, d *dispatcher, done chan<- struct{}) {
	defer func() {
		d.close()
		p.state.Store(int32(Stopped))
		close(done)
	}()

	frame := make([]uint8, p.channels)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("[acquisition] received shutdown signal",
				zap.Uint64("framesReceived", p.framesReceived.Load()),
				zap.Uint64("droppedFrames", p.droppedFrames.Load()),
			)
			return
		default:
		}

		err := fr.ReadFrame(frame)
		switch rserial.Classify(err) {
		case rserial.ClassNone:
		case rserial.ClassIncomplete:
			continue
		case rserial.ClassTimeout:
			p.readTimeouts.Add(1)
			continue
		case rserial.ClassMalformed:
			p.droppedFrames.Add(1)
			continue
		default:
			p.fail(err)
			return
		}

		p.framesReceived.Add(1)
		for ch, v := range frame {
			p.buffers[ch].Push(v)
		}

		p.sinceTick++
		if p.sinceTick >= p.decimation {
			p.sinceTick = 0
			d.publish(p.takeSnapshot())
		}
	}
}

// fail reports a fatal transport error once and leaves the loop to exit.
func (p *Pipeline) fail(err error) {
	p.logger.Error("[acquisition] fatal transport error, stopping", zap.Error(err))

	select {
	case p.errs <- &FatalTransportError{Err: err}:
	default:
		p.logger.Warn("[acquisition] previous transport error not consumed, dropping", zap.Error(err))
	}
}
