package stream

import (
	"math"
	"math/bits"
	"slices"
	"sync"
	"sync/atomic"
)

// Stats receiver counters snapshot
type Stats struct {
	Session     string
	Packets     uint64 // datagrams received
	Bytes       uint64 // payload bytes copied into frames
	Frames      uint64 // frames emitted
	Superseded  uint64 // incomplete frames discarded by a newer leader
	Stale       uint64 // generic/trailer of block not in reassembly
	Malformed   uint64 // header too short or invalid
	Unknown     uint64 // unknown packet format
	Unsupported uint64 // leader with unsupported pixel format
	Unexpected  uint64 // leader with unexpected payload type
	Missing     uint64 // chunks missing in emitted frames
	Duplicated  uint64 // chunks received more than once
	BlockLoss   float64
	ChunkSize   int
}

type counters struct {
	packets, bytes, frames, superseded     atomic.Uint64
	stale, malformed, unknown, unsupported atomic.Uint64
	unexpected, missing, duplicated        atomic.Uint64
	chunkSize                              atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Packets:     c.packets.Load(),
		Bytes:       c.bytes.Load(),
		Frames:      c.frames.Load(),
		Superseded:  c.superseded.Load(),
		Stale:       c.stale.Load(),
		Malformed:   c.malformed.Load(),
		Unknown:     c.unknown.Load(),
		Unsupported: c.unsupported.Load(),
		Unexpected:  c.unexpected.Load(),
		Missing:     c.missing.Load(),
		Duplicated:  c.duplicated.Load(),
		ChunkSize:   int(c.chunkSize.Load()),
	}
}

// FrameStats chunk accounting of one frame
type FrameStats struct {
	Expected   int // chunks required by resolution
	Received   int // distinct chunks received
	Duplicated int
}

func (s FrameStats) Missing() int {
	return max(s.Expected-s.Received, 0)
}

// chunkSet record received packet id of a frame, the capacity is fixed
// by frame size and chunk size.
type chunkSet struct {
	bits []uint64
	size int
	n    int
}

func newChunkSet(size int) chunkSet {
	return chunkSet{bits: make([]uint64, (size+63)/64), size: size}
}

// chunkCount chunks required by frame of size bytes
func chunkCount(size, chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	return (size + chunkSize - 1) / chunkSize
}

// add return true if id already exist, id out of capacity is ignored.
func (c *chunkSet) add(id uint32) bool {
	if int64(id) >= int64(c.size) {
		return false
	}
	i, m := id/64, uint64(1)<<(id%64)
	if c.bits[i]&m != 0 {
		return true
	}
	c.bits[i] |= m
	c.n++
	return false
}

func (c *chunkSet) each(fn func(id uint32)) {
	for i, w := range c.bits {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			fn(uint32(i*64 + j))
			w &= w - 1
		}
	}
}

// BlockLoss estimate leader loss ratio over a window of recent block ids.
// Standard 16 bit block id loopback 0xffff -> 1 (zero is reserved), a large
// jump (device restart) restart the window.
type BlockLoss struct {
	mu   sync.Mutex
	seqs []int64 // unwrapped block id, ring buffer
	head int
	full bool
	last int64
}

const blockPeriod = 0xffff

func NewBlockLoss(window int) *BlockLoss {
	if window < 2 {
		window = 2
	}
	return &BlockLoss{seqs: make([]int64, window)}
}

func (b *BlockLoss) Observe(id uint64, extended bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.unwrap(id, extended)
	if b.count() > 0 {
		w := int64(len(b.seqs))
		if d := seq - b.last; d > 4*w || d < -w {
			b.head, b.full = 0, false
		}
	}

	if b.count() == 0 || seq > b.last {
		b.last = seq
	}
	b.seqs[b.head] = seq
	b.head = (b.head + 1) % len(b.seqs)
	b.full = b.full || b.head == 0
}

func (b *BlockLoss) unwrap(id uint64, extended bool) int64 {
	if extended {
		return int64(id & math.MaxInt64)
	}

	pos := int64((id + blockPeriod - 1) % blockPeriod)
	if b.count() == 0 {
		return pos
	}
	delta := (pos - b.last%blockPeriod + blockPeriod) % blockPeriod
	if delta > blockPeriod/2 {
		delta -= blockPeriod
	}
	return b.last + delta
}

func (b *BlockLoss) count() int {
	if b.full {
		return len(b.seqs)
	}
	return b.head
}

// PL loss ratio of the window, zero if less than two blocks observed.
func (b *BlockLoss) PL() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count()
	if n < 2 {
		return 0
	}

	var seqs = slices.Clone(b.seqs[:n])
	slices.Sort(seqs)
	seqs = slices.Compact(seqs)

	span := seqs[len(seqs)-1] - seqs[0] + 1
	return float64(span-int64(len(seqs))) / float64(span)
}
