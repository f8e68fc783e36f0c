package negotiate

import (
	"log/slog"
	"os"
	"time"

	"github.com/lysShub/gige-stream/gvcp"
)

type Config struct {
	Channel gvcp.Channel

	// bisection bounds, default [1, 65535]
	Low, High uint16

	// Timeout probe socket read timeout, default 1s, a read return
	// without packet is a negative verdict.
	Timeout time.Duration

	MaxRecvBuff int // default 10000

	LogPath string
	logger  *slog.Logger
}

func (c *Config) init() *Config {
	if c.Low == 0 {
		c.Low = 1
	}
	if c.High == 0 {
		c.High = 0xffff
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.MaxRecvBuff <= 0 {
		c.MaxRecvBuff = 10000
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

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.logger = logger
	return c
}
