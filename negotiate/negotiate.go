package negotiate

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysShub/gige-stream/conn"
	"github.com/lysShub/gige-stream/gvcp"
	"github.com/lysShub/gige-stream/gvsp"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// ChunkSize generic payload bytes per datagram for stream channel packet
// size, SCPS counts ip and udp header.
func ChunkSize(packetSize int, extended bool) int {
	n := packetSize - header.IPv4MinimumSize - header.UDPMinimumSize - gvsp.HeaderSize
	if extended {
		n = packetSize - header.IPv4MinimumSize - header.UDPMinimumSize - gvsp.ExtendedHeaderSize
	}
	return max(n, 0)
}

// Negotiator determine stream packet size the camera can deliver, by
// write packet size register with fire-test-packet flag and observe the
// test packet on probe socket, the probe socket must bind the port of
// stream channel destination.
type Negotiator struct {
	config *Config
	regs   gvcp.Registers
	probe  *conn.UDPConn
}

func New(regs gvcp.Registers, probe *conn.UDPConn, config *Config) *Negotiator {
	return &Negotiator{
		config: config.init(),
		regs:   regs,
		probe:  probe,
	}
}

type verdict struct {
	received  bool
	size      int
	since, at time.Time // read start and return time
}

// Probe test one packet size, return packet size accepted by camera and
// whether the test packet observed. A miss can't tell whether the camera
// rejected or the packet lost.
func (n *Negotiator) Probe(ctx context.Context, size uint16) (actual uint16, received bool, err error) {
	err = n.negotiate(ctx, func(ctx context.Context, verdicts <-chan verdict) (err error) {
		actual, received, err = n.attempt(ctx, verdicts, size)
		return err
	})
	if err != nil {
		return 0, false, err
	}

	if !received {
		n.config.logger.Warn("test packet not received",
			slog.Int("request", int(size)),
			slog.Int("actual", int(actual)),
		)
	}
	return actual, received, nil
}

// Search bisect the largest packet size in [Low, High) that camera accept
// and deliver, then commit it to the packet size register. Assume Low is
// deliverable and High isn't, a lost test packet shrink the result.
func (n *Negotiator) Search(ctx context.Context) (uint16, error) {
	low, high := n.config.Low, n.config.High
	err := n.negotiate(ctx, func(ctx context.Context, verdicts <-chan verdict) error {
		for int(high)-int(low) > 1 {
			mid := low + (high-low)/2
			actual, ok, err := n.attempt(ctx, verdicts, mid)
			if err != nil {
				return err
			}
			n.config.logger.Debug("probe",
				slog.Int("request", int(mid)),
				slog.Int("actual", int(actual)),
				slog.Bool("received", ok),
			)

			if ok && actual == mid {
				low = mid
			} else {
				high = mid
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := n.config.Channel.SetPacketSize(n.regs, gvcp.DoNotFragment, low); err != nil {
		return 0, err
	}
	n.config.logger.Info("packet size negotiated",
		slog.Int("channel", int(n.config.Channel)),
		slog.Int("size", int(low)),
	)
	return low, nil
}

// negotiate run probe listener and driver concurrently, listener is
// stopped after driver return.
func (n *Negotiator) negotiate(ctx context.Context, drive func(context.Context, <-chan verdict) error) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var verdicts = make(chan verdict)
	g.Go(func() error { return n.listen(ctx, verdicts) })
	g.Go(func() error {
		defer cancel()
		return drive(ctx, verdicts)
	})
	return g.Wait()
}

func (n *Negotiator) attempt(ctx context.Context, verdicts <-chan verdict, size uint16) (uint16, bool, error) {
	written := time.Now()
	err := n.config.Channel.SetPacketSize(n.regs, gvcp.FireTestPacket|gvcp.DoNotFragment, size)
	if err != nil {
		return 0, false, err
	}
	actual, err := n.config.Channel.PacketSize(n.regs)
	if err != nil {
		return 0, false, err
	}

	for {
		select {
		case v := <-verdicts:
			if v.received && v.at.After(written) {
				return actual, true, nil
			} else if !v.received && !v.since.Before(written) {
				return actual, false, nil
			}
			// verdict of previous attempt
		case <-ctx.Done():
			return 0, false, errors.WithStack(context.Cause(ctx))
		}
	}
}

func (n *Negotiator) listen(ctx context.Context, verdicts chan<- verdict) error {
	stop := context.AfterFunc(ctx, func() {
		n.probe.SetReadDeadline(time.Now())
	})
	defer stop()

	var pkt = packet.Make(n.config.MaxRecvBuff)
	for {
		var v = verdict{since: time.Now()}
		if err := n.probe.SetReadDeadline(v.since.Add(n.config.Timeout)); err != nil {
			return err
		} else if ctx.Err() != nil {
			return nil
		}

		src, err := n.probe.ReadFromAddrPort(pkt.Sets(0, 0xffff))
		v.at = time.Now()
		if ctx.Err() != nil {
			return nil
		} else if err != nil {
			if !conn.Timeout(err) {
				return err
			}
		} else {
			v.received, v.size = true, pkt.Data()
			n.config.logger.Debug("test packet",
				slog.String("src", src.String()),
				slog.Int("size", v.size),
			)
		}

		select {
		case verdicts <- v:
		case <-ctx.Done():
			return nil
		}
	}
}
