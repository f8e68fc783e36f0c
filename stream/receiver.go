package stream

import (
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lysShub/gige-stream/bayer"
	"github.com/lysShub/gige-stream/conn"
	"github.com/lysShub/gige-stream/sink"
	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

// Receiver receive one GVSP stream channel, reassembled frames are
// demosaiced and put to sink.
type Receiver struct {
	config  *Config
	session uuid.UUID

	conn *conn.UDPConn
	asm  *Assembler
	sink sink.Sink

	start    atomic.Bool
	closeErr errorx.CloseErr
}

func NewReceiver(laddr netip.AddrPort, s sink.Sink, config *Config) (*Receiver, error) {
	var r = &Receiver{
		config:  config.init(),
		session: uuid.New(),
		sink:    s,
	}
	r.asm = NewAssembler(r.config.ChunkSize, r.config.MaxFrameSize)

	var err error
	if r.conn, err = conn.Bind(laddr); err != nil {
		return nil, r.close(err)
	}
	if err := r.conn.SetReadBuffer(r.config.ReadBuffer); err != nil {
		r.config.logger.Warn(err.Error(), errorx.Trace(err))
	}
	if r.config.SourcePort != 0 {
		err := r.conn.AttachFilter(conn.FilterSourcePort(r.config.SourcePort))
		if err != nil {
			r.config.logger.Warn(err.Error(), errorx.Trace(err))
		}
	}

	r.config.logger.Info("receiver bind",
		slog.String("session", r.session.String()),
		slog.String("addr", r.conn.LocalAddr().String()),
		slog.Int("chunk", r.config.ChunkSize),
	)
	return r, nil
}

func (r *Receiver) close(cause error) error {
	return r.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)
		if cause != nil {
			r.config.logger.Error(cause.Error(), errorx.Trace(cause), slog.String("session", r.session.String()))
		}
		if r.conn != nil {
			errs = append(errs, r.conn.Close())
		}
		return errs
	})
}

// Serve block until receiver closed, can only be called once.
func (r *Receiver) Serve() error {
	if !r.start.CompareAndSwap(false, true) {
		return errors.New("receiver started")
	}

	var pkts = make([]*packet.Packet, r.config.BatchSize)
	for i := range pkts {
		pkts[i] = packet.Make(r.config.MaxRecvBuff)
	}

	for {
		for _, pkt := range pkts {
			pkt.Sets(0, 0xffff)
		}
		n, err := r.conn.ReadBatch(pkts)
		if err != nil {
			return r.close(err)
		}

		for _, pkt := range pkts[:n] {
			if err := r.handle(pkt); err != nil {
				if errorx.Temporary(err) {
					continue
				}
				return r.close(err)
			}
		}
	}
}

func (r *Receiver) handle(pkt *packet.Packet) error {
	f, err := r.asm.Feed(pkt)
	if err != nil {
		hdr := r.asm.Header()
		if errors.Is(err, ErrStaleBlock) {
			r.config.logger.Debug(err.Error())
		} else {
			r.config.logger.Warn(err.Error(),
				slog.String("format", hdr.Format.String()),
				slog.Uint64("block", hdr.BlockID),
			)
		}
		return errorx.WrapTemp(err)
	} else if f == nil {
		return nil
	}

	if m := f.Stats.Missing(); m > 0 {
		r.config.logger.Warn("incomplete frame",
			slog.Uint64("block", f.BlockID),
			slog.Int("missing", m),
			slog.Int("expected", f.Stats.Expected),
		)
	}
	if err := r.emit(f); err != nil {
		r.config.logger.Warn(err.Error(), errorx.Trace(err), slog.Uint64("block", f.BlockID))
		return errorx.WrapTemp(err)
	}
	return nil
}

func (r *Receiver) emit(f *Frame) error {
	rgb, err := bayer.Demosaic(f.Raw, int(f.Width), int(f.Height))
	if err != nil {
		return err
	}
	return r.sink.Put(&sink.Frame{
		BlockID:     f.BlockID,
		Timestamp:   f.Timestamp,
		PixelFormat: f.PixelFormat,
		Width:       int(f.Width),
		Height:      int(f.Height),
		RGB:         rgb,
	})
}

func (r *Receiver) LocalAddr() netip.AddrPort { return r.conn.LocalAddr() }

func (r *Receiver) Session() uuid.UUID { return r.session }

// Stats counters snapshot, BlockLoss is the ratio over recent leaders.
func (r *Receiver) Stats() Stats {
	s := r.asm.Stats()
	s.Session = r.session.String()
	return s
}

func (r *Receiver) Close() error { return r.close(nil) }
