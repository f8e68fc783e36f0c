// gvsim stream synthetic BayerRG8 frames to a receiver, without camera.
package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"net/netip"
	"os"
	"time"

	"github.com/lysShub/gige-stream/conn"
	"github.com/lysShub/gige-stream/gvsp"
	"github.com/lysShub/gige-stream/stream"
	"github.com/lysShub/netkit/errorx"
)

var (
	target   = flag.String("target", "127.0.0.1:50010", "receiver address")
	width    = flag.Int("width", 640, "")
	height   = flag.Int("height", 480, "")
	chunk    = flag.Int("chunk", 1464, "generic payload size")
	fps      = flag.Int("fps", 10, "")
	loss     = flag.Float64("loss", 0, "datagram drop ratio")
	extended = flag.Bool("extended", false, "extended block id")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dst, err := netip.ParseAddrPort(*target)
	if err != nil {
		panic(err)
	}
	c, err := conn.Dial(netip.AddrPort{}, dst)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	var info = gvsp.LeaderInfo{
		PixelFormat: gvsp.BayerRG8,
		Width:       uint32(*width),
		Height:      uint32(*height),
	}
	var raw = make([]byte, *width**height)
	var start = time.Now()

	var block uint64
	for range time.Tick(time.Second / time.Duration(*fps)) {
		block++
		if !*extended && block > 0xffff {
			block = 1 // zero is reserved
		}
		pattern(raw, *width, int(block))
		info.Timestamp = uint64(time.Since(start).Microseconds())

		pkts, err := stream.Packetize(block, info, raw, *chunk, *extended)
		if err != nil {
			panic(err)
		}
		for _, pkt := range pkts {
			if *loss > 0 && rand.Float64() < *loss {
				continue
			}
			if err := c.Write(pkt); err != nil {
				logger.Warn(err.Error(), errorx.Trace(err))
			}
		}
	}
}

// pattern moving diagonal stripe over RGGB mosaic
func pattern(raw []byte, w, shift int) {
	for i := range raw {
		x, y := i%w, i/w
		v := byte((x + y + shift*4) & 0xff)
		switch {
		case y%2 == 0 && x%2 == 0: // R
			raw[i] = v
		case y%2 == 1 && x%2 == 1: // B
			raw[i] = 0xff - v
		default:
			raw[i] = 0x80
		}
	}
}
