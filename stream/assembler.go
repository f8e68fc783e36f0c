package stream

import (
	"math"

	"github.com/lysShub/gige-stream/gvsp"
	"github.com/lysShub/netkit/debug"
	"github.com/lysShub/netkit/packet"
	"github.com/lysShub/rawsock/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var (
	ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")
	ErrStaleBlock             = errors.New("stale or mismatched block id")
	ErrInvalidResolution      = errors.New("invalid resolution")
)

// Frame reassembled raw frame, Raw is width*height BayerRG8 mosaic.
type Frame struct {
	BlockID     uint64
	Width       uint32
	Height      uint32
	PixelFormat gvsp.PixelFormat
	Timestamp   uint64
	Raw         []byte

	Stats FrameStats
}

type accumulator struct {
	blockID uint64
	leader  gvsp.LeaderInfo
	raw     []byte

	chunks chunkSet
	dups   int
}

// Assembler reassemble GVSP packets of one stream channel into frames.
// Only one frame is in reassembly, a new leader always supersedes the
// incomplete one. Not concurrent safe except Stats.
type Assembler struct {
	chunkSize int
	learn     bool
	maxFrame  int

	acc *accumulator // nil is awaiting leader
	hdr gvsp.Fields

	counters counters
	loss     *BlockLoss
}

func NewAssembler(chunkSize, maxFrameSize int) *Assembler {
	if maxFrameSize <= 0 {
		maxFrameSize = math.MaxInt32
	}
	var a = &Assembler{
		chunkSize: max(chunkSize, 0),
		learn:     chunkSize <= 0,
		maxFrame:  maxFrameSize,
		loss:      NewBlockLoss(64),
	}
	a.counters.chunkSize.Store(int64(a.chunkSize))
	return a
}

// Feed consume one datagram, return the frame if it completes one. Error
// means the packet was dropped, it never aborts the stream.
func (a *Assembler) Feed(pkt *packet.Packet) (*Frame, error) {
	a.counters.packets.Add(1)

	if err := a.hdr.Decode(pkt); err != nil {
		if errors.Is(err, gvsp.ErrUnknownFormat) {
			a.counters.unknown.Add(1)
		} else {
			a.counters.malformed.Add(1)
		}
		return nil, err
	}

	switch a.hdr.Format {
	case gvsp.Leader:
		return nil, a.leader(pkt)
	case gvsp.Generic:
		return nil, a.generic(pkt)
	case gvsp.Trailer:
		return a.trailer(pkt)
	default:
		a.counters.unknown.Add(1)
		return nil, errors.WithMessagef(gvsp.ErrUnknownFormat, "format %d", uint8(a.hdr.Format))
	}
}

// Header the last decoded header.
func (a *Assembler) Header() gvsp.Fields { return a.hdr }

// Current block id in reassembly, false if awaiting leader.
func (a *Assembler) Current() (uint64, bool) {
	if a.acc == nil {
		return 0, false
	}
	return a.acc.blockID, true
}

func (a *Assembler) ChunkSize() int { return a.chunkSize }

func (a *Assembler) Stats() Stats {
	s := a.counters.snapshot()
	s.BlockLoss = a.loss.PL()
	return s
}

func (a *Assembler) leader(pkt *packet.Packet) error {
	var info gvsp.LeaderInfo
	if err := info.Decode(pkt); err != nil {
		if errors.Is(err, gvsp.ErrUnexpectedPayloadType) {
			a.counters.unexpected.Add(1)
		} else {
			a.counters.malformed.Add(1)
		}
		return errors.WithMessagef(err, "block %d", a.hdr.BlockID)
	}

	if a.acc != nil {
		if a.acc.blockID == a.hdr.BlockID {
			a.counters.duplicated.Add(1)
			return errors.WithMessagef(ErrStaleBlock, "duplicate leader %d", a.hdr.BlockID)
		}
		a.counters.superseded.Add(1)
		a.acc = nil
	}
	a.loss.Observe(a.hdr.BlockID, a.hdr.Extended)

	if info.PixelFormat != gvsp.BayerRG8 {
		a.counters.unsupported.Add(1)
		return errors.WithMessagef(ErrUnsupportedPixelFormat, "%s", info.PixelFormat.String())
	}
	size := uint64(info.Width) * uint64(info.Height)
	if size == 0 || size > uint64(a.maxFrame) {
		a.counters.malformed.Add(1)
		return errors.WithMessagef(ErrInvalidResolution, "%dx%d", info.Width, info.Height)
	}

	a.acc = &accumulator{
		blockID: a.hdr.BlockID,
		leader:  info,
		raw:     make([]byte, size),
		chunks:  newChunkSet(chunkCount(int(size), a.chunkSize)),
	}
	return nil
}

func (a *Assembler) generic(pkt *packet.Packet) error {
	if a.acc == nil || a.acc.blockID != a.hdr.BlockID {
		a.counters.stale.Add(1)
		return errors.WithMessagef(ErrStaleBlock, "generic block %d packet %d", a.hdr.BlockID, a.hdr.PacketID)
	} else if a.hdr.PacketID == 0 {
		a.counters.malformed.Add(1)
		return errors.WithMessagef(gvsp.ErrMalformedHeader, "generic block %d packet id 0", a.hdr.BlockID)
	}

	payload := pkt.Bytes()
	if len(payload) == 0 {
		return nil
	} else if a.learn && len(payload) > a.chunkSize {
		a.relearn(len(payload))
	}

	raw := a.acc.raw
	off := uint64(a.chunkSize) * uint64(a.hdr.PacketID-1)
	if off >= uint64(len(raw)) {
		return nil // past the frame end, padding
	}
	end := min(off+uint64(len(payload)), uint64(len(raw)))
	n := copy(raw[off:end], payload)
	if debug.Debug() {
		require.Equal(test.T(), int(end-off), n)
	}

	if a.acc.chunks.add(a.hdr.PacketID - 1) {
		a.acc.dups++
		a.counters.duplicated.Add(1)
	}
	a.counters.bytes.Add(uint64(n))
	return nil
}

func (a *Assembler) trailer(pkt *packet.Packet) (*Frame, error) {
	if a.acc == nil || a.acc.blockID != a.hdr.BlockID {
		a.counters.stale.Add(1)
		return nil, errors.WithMessagef(ErrStaleBlock, "trailer block %d", a.hdr.BlockID)
	}

	var info gvsp.TrailerInfo
	if err := info.Decode(pkt); err != nil {
		return nil, err
	}

	acc := a.acc
	a.acc = nil

	var f = &Frame{
		BlockID:     acc.blockID,
		Width:       acc.leader.Width,
		Height:      acc.leader.Height,
		PixelFormat: acc.leader.PixelFormat,
		Timestamp:   acc.leader.Timestamp,
		Raw:         acc.raw,
		Stats: FrameStats{
			Received:   acc.chunks.n,
			Duplicated: acc.dups,
		},
	}
	f.Stats.Expected = chunkCount(len(acc.raw), a.chunkSize)

	a.counters.frames.Add(1)
	a.counters.missing.Add(uint64(f.Stats.Missing()))
	return f, nil
}

// relearn grow the learned chunk size, chunks already placed with smaller
// size are moved to their offset of the new size.
func (a *Assembler) relearn(chunkSize int) {
	old := a.chunkSize
	a.chunkSize = chunkSize
	a.counters.chunkSize.Store(int64(chunkSize))

	acc := a.acc
	chunks := newChunkSet(chunkCount(len(acc.raw), chunkSize))
	if acc.chunks.n == 0 {
		acc.chunks = chunks
		return
	}

	raw := make([]byte, len(acc.raw))
	acc.chunks.each(func(id uint32) {
		from := old * int(id)
		to := chunkSize * int(id)
		if to >= len(raw) {
			return
		}
		copy(raw[to:], acc.raw[from:min(from+old, len(acc.raw))])
		chunks.add(id)
	})
	if debug.Debug() {
		require.LessOrEqual(test.T(), chunks.n, acc.chunks.n)
	}
	acc.raw, acc.chunks = raw, chunks
}
