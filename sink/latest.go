package sink

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("sink closed")

// Latest keep the last frame only, for display.
type Latest struct {
	mu    sync.RWMutex
	frame *Frame
	seq   uint64
	fps   fps
}

func NewLatest() *Latest {
	return &Latest{fps: fps{start: time.Now()}}
}

func (l *Latest) Put(f *Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.frame = f
	l.seq++
	l.fps.bump(time.Now())
	return nil
}

// Frame return last frame and it's sequence, nil if no frame received.
func (l *Latest) Frame() (*Frame, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.seq
}

// FPS average frame rate of last complete second, zero before that.
func (l *Latest) FPS() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fps.avg
}

type fps struct {
	start time.Time
	count int
	avg   float64
}

func (f *fps) bump(now time.Time) {
	f.count++
	if d := now.Sub(f.start); d > time.Second {
		f.avg = float64(f.count) / d.Seconds()
		f.start = now
		f.count = 0
	}
}
