// Package monitor http status of the running stream, receiver counters
// and the latest reconstructed frame.
package monitor

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lysShub/gige-stream/sink"
	"github.com/lysShub/gige-stream/stream"
	"github.com/lysShub/netkit/errorx"
	"github.com/pkg/errors"
)

type Stater interface {
	Stats() stream.Stats
}

type Monitor struct {
	logger *slog.Logger
	stats  Stater
	latest *sink.Latest

	engine *gin.Engine
	srv    *http.Server
}

func New(stats Stater, latest *sink.Latest, logger *slog.Logger) *Monitor {
	gin.SetMode(gin.ReleaseMode)

	var m = &Monitor{
		logger: logger,
		stats:  stats,
		latest: latest,
		engine: gin.New(),
	}
	m.engine.Use(gin.Recovery())
	m.engine.GET("/stats", m.handleStats)
	m.engine.GET("/frame.png", m.handleFrame("image/png"))
	m.engine.GET("/frame.jpg", m.handleFrame("image/jpeg"))
	m.srv = &http.Server{Handler: m.engine}
	return m
}

func (m *Monitor) Handler() http.Handler { return m.engine }

// Serve block until Shutdown
func (m *Monitor) Serve(l net.Listener) error {
	m.logger.Info("monitor serve", slog.String("addr", l.Addr().String()))

	err := m.srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WithStack(err)
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	return errors.WithStack(m.srv.Shutdown(ctx))
}

type frameResp struct {
	BlockID     uint64
	Width       int
	Height      int
	PixelFormat string
}

type statsResp struct {
	stream.Stats
	FPS      float64
	Sequence uint64
	Frame    *frameResp `json:",omitempty"`
}

func (m *Monitor) handleStats(c *gin.Context) {
	var resp = statsResp{Stats: m.stats.Stats()}
	if m.latest != nil {
		var f *sink.Frame
		f, resp.Sequence = m.latest.Frame()
		resp.FPS = m.latest.FPS()
		if f != nil {
			resp.Frame = &frameResp{
				BlockID:     f.BlockID,
				Width:       f.Width,
				Height:      f.Height,
				PixelFormat: f.PixelFormat.String(),
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (m *Monitor) handleFrame(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.latest == nil {
			c.Status(http.StatusNotFound)
			return
		}
		f, seq := m.latest.Frame()
		if f == nil {
			c.Status(http.StatusNoContent)
			return
		}

		img, err := f.Image()
		if err != nil {
			m.logger.Warn(err.Error(), errorx.Trace(err))
			c.Status(http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		switch contentType {
		case "image/jpeg":
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		default:
			err = (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(&buf, img)
		}
		if err != nil {
			m.logger.Warn(err.Error(), errorx.Trace(err))
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Header("X-Frame-Sequence", strconv.FormatUint(seq, 10))
		c.Header("X-Block-Id", strconv.FormatUint(f.BlockID, 10))
		c.Header("X-Pixel-Format", f.PixelFormat.String())
		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}
