package sink

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lysShub/netkit/errorx"
)

// Async decouple slow sink (disk, display) from stream receiver, when the
// queue is full incoming frame is dropped.
type Async struct {
	sink   Sink
	logger *slog.Logger

	mu     sync.RWMutex
	ch     chan *Frame
	closed bool
	done   chan struct{}

	sent, dropped atomic.Uint64
}

func NewAsync(s Sink, depth int, logger *slog.Logger) *Async {
	if depth <= 0 {
		depth = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	var a = &Async{
		sink:   s,
		logger: logger,
		ch:     make(chan *Frame, depth),
		done:   make(chan struct{}),
	}
	go a.service()
	return a
}

func (a *Async) service() {
	defer close(a.done)
	for f := range a.ch {
		if err := a.sink.Put(f); err != nil {
			a.logger.Warn(err.Error(), errorx.Trace(err), slog.Uint64("block", f.BlockID))
		}
	}
}

func (a *Async) Put(f *Frame) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.ch <- f:
		a.sent.Add(1)
	default:
		a.dropped.Add(1)
	}
	return nil
}

func (a *Async) Stats() (sent, dropped uint64) {
	return a.sent.Load(), a.dropped.Load()
}

// Close stop accept frame, and wait queued frames flushed.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	<-a.done
	return nil
}
