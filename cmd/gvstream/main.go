package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysShub/gige-stream/conn"
	"github.com/lysShub/gige-stream/gvcp"
	"github.com/lysShub/gige-stream/monitor"
	"github.com/lysShub/gige-stream/negotiate"
	"github.com/lysShub/gige-stream/sink"
	"github.com/lysShub/gige-stream/stream"
	"github.com/lysShub/netkit/errorx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	camera     = flag.String("camera", "", "camera ip, empty only receive stream")
	channel    = flag.Uint("channel", 0, "stream channel index")
	listen     = flag.String("listen", "0.0.0.0:0", "stream receive address")
	packetSize = flag.Uint("packet-size", 0, "stream packet size, zero negotiate by bisection")
	chunk      = flag.Int("chunk", 0, "generic payload size, zero derive from packet size or learn")
	out        = flag.String("out", "", "png output directory")
	queue      = flag.Int("queue", 8, "png sink queue depth")
	admin      = flag.String("monitor", "", "monitor http address")
	logPath    = flag.String("log", "", "log file, default stdout")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger, err := newLogger(*logPath)
	if err != nil {
		return err
	}
	laddr, err := netip.ParseAddrPort(*listen)
	if err != nil {
		return errors.WithStack(err)
	}
	var ch = gvcp.Channel(*channel)

	var cfg = (&stream.Config{ChunkSize: *chunk}).WithLogger(logger)
	var ctrl *gvcp.Client
	if *camera != "" {
		addr, err := netip.ParseAddr(*camera)
		if err != nil {
			return errors.WithStack(err)
		}
		ctrl, err = gvcp.Dial(netip.AddrPortFrom(addr, gvcp.Port), (&gvcp.Config{}).WithLogger(logger))
		if err != nil {
			return err
		}
		defer ctrl.Close()
		if err := gvcp.TakeControl(ctrl, false); err != nil {
			return err
		}
		defer releaseControl(ctrl, logger)

		size, err := setupPacketSize(ctx, ctrl, ch, logger)
		if err != nil {
			return err
		}
		if cfg.ChunkSize == 0 {
			cfg.ChunkSize = negotiate.ChunkSize(int(size), false)
		}
		if cfg.SourcePort, err = ch.SourcePort(ctrl); err != nil {
			logger.Warn(err.Error(), errorx.Trace(err))
		}
	}

	var latest = sink.NewLatest()
	var sinks = sink.Multi{latest}
	if *out != "" {
		p, err := sink.NewPNG(*out)
		if err != nil {
			return err
		}
		a := sink.NewAsync(p, *queue, logger)
		defer a.Close()
		sinks = append(sinks, a)
	}

	r, err := stream.NewReceiver(laddr, sinks, cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	if ctrl != nil {
		dst := netip.AddrPortFrom(ctrl.LocalAddr().Addr(), r.LocalAddr().Port())
		if err := ch.SetDestination(ctrl, dst); err != nil {
			return err
		}
		logger.Info("stream destination", slog.String("addr", dst.String()), slog.Int("channel", int(ch)))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := r.Serve()
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return r.Close()
	})
	if ctrl != nil {
		g.Go(func() error {
			err := ctrl.Heartbeat(ctx, time.Second)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	if *admin != "" {
		l, err := net.Listen("tcp", *admin)
		if err != nil {
			return errors.WithStack(err)
		}
		m := monitor.New(r, latest, logger)
		g.Go(func() error { return m.Serve(l) })
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return m.Shutdown(sctx)
		})
	}
	return g.Wait()
}

func releaseControl(regs gvcp.Registers, logger *slog.Logger) {
	if err := gvcp.ReleaseControl(regs); err != nil {
		logger.Warn(err.Error(), errorx.Trace(err))
	}
}

// setupPacketSize negotiate stream packet size on a temporary probe port.
func setupPacketSize(ctx context.Context, ctrl *gvcp.Client, ch gvcp.Channel, logger *slog.Logger) (uint16, error) {
	probe, err := conn.Bind(netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
	if err != nil {
		return 0, err
	}
	defer probe.Close()

	dst := netip.AddrPortFrom(ctrl.LocalAddr().Addr(), probe.LocalAddr().Port())
	if err := ch.SetDestination(ctrl, dst); err != nil {
		return 0, err
	}

	n := negotiate.New(ctrl, probe, (&negotiate.Config{Channel: ch}).WithLogger(logger))
	if *packetSize == 0 {
		return n.Search(ctx)
	}

	size, ok, err := n.Probe(ctx, uint16(*packetSize))
	if err != nil {
		return 0, err
	} else if !ok {
		return 0, errors.Errorf("packet size %d test packet not received", size)
	}
	return size, ch.SetPacketSize(ctrl, gvcp.DoNotFragment, size)
}

func newLogger(path string) (*slog.Logger, error) {
	var fh = os.Stdout
	if path != "" {
		var err error
		fh, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o666)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return slog.New(slog.NewJSONHandler(fh, nil)), nil
}
