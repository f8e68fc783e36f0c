package stream

import (
	"log/slog"
	"os"
)

type Config struct {
	// ChunkSize generic payload bytes per datagram, it's the negotiated
	// packet size minus ip/udp/gvsp header. Zero means learn it from the
	// largest payload received.
	ChunkSize int

	MaxRecvBuff  int // max datagram size, default 10000
	BatchSize    int // datagrams per read call, default 16
	ReadBuffer   int // socket receive buffer, default 8MB
	MaxFrameSize int // max width*height accepted from leader, default 64MB

	// SourcePort camera stream source port (SCSP), if not zero datagrams
	// from other ports are filtered by kernel, only linux.
	SourcePort uint16

	LogPath string
	logger  *slog.Logger
}

func (c *Config) init() *Config {
	if c.MaxRecvBuff <= 0 {
		c.MaxRecvBuff = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = 8 << 20
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 64 << 20
	}

	if c.logger == nil {
		var fh *os.File
		var err error
		if c.LogPath == "" {
			fh = os.Stdout
		} else {
			fh, err = os.OpenFile(c.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o666)
			if err != nil {
				panic(err)
			}
		}
		c.logger = slog.New(slog.NewJSONHandler(fh, nil))
	}
	return c
}

// WithLogger override the logger built from LogPath.
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.logger = logger
	return c
}
