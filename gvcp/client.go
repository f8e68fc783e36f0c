package gvcp

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/lysShub/gige-stream/conn"
	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

const Port = 3956

var ErrAck = errors.New("gvcp ack status")

const (
	cmdKey      = 0x42
	flagAckReq  = 0x01
	headerSize  = 8
	maxAckSize  = 576
	readRegCmd  = 0x0080
	readRegAck  = 0x0081
	writeRegCmd = 0x0082
	writeRegAck = 0x0083
)

type Config struct {
	Timeout time.Duration // per attempt, default 200ms
	Retries int           // default 3

	LogPath string
	logger  *slog.Logger
}

func (c *Config) init() *Config {
	if c.Timeout <= 0 {
		c.Timeout = time.Millisecond * 200
	}
	if c.Retries <= 0 {
		c.Retries = 3
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

// Client control channel register access, only READREG and WRITEREG
// command are implemented.
type Client struct {
	config *Config

	mu    sync.Mutex
	conn  *conn.UDPConn
	reqID uint16

	closeErr errorx.CloseErr
}

var _ Registers = (*Client)(nil)

func Dial(camera netip.AddrPort, config *Config) (*Client, error) {
	if camera.Port() == 0 {
		camera = netip.AddrPortFrom(camera.Addr(), Port)
	}
	var c = &Client{config: config.init()}

	var err error
	c.conn, err = conn.Dial(netip.AddrPort{}, camera)
	if err != nil {
		return nil, c.close(err)
	}
	return c, nil
}

func (c *Client) close(cause error) error {
	return c.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)
		if c.conn != nil {
			errs = append(errs, c.conn.Close())
		}
		return errs
	})
}

// LocalAddr local address of control channel, it's routable from camera.
func (c *Client) LocalAddr() netip.AddrPort { return c.conn.LocalAddr() }

func (c *Client) ReadRegister(addr uint64) ([4]byte, error) {
	if addr > 0xffffffff {
		return [4]byte{}, errors.Errorf("register address %#x overflow 32bit", addr)
	}

	var req = binary.BigEndian.AppendUint32(make([]byte, 0, 4), uint32(addr))
	resp, err := c.transact(readRegCmd, readRegAck, req)
	if err != nil {
		return [4]byte{}, errors.WithMessagef(err, "read register %#x", addr)
	} else if len(resp) < 4 {
		return [4]byte{}, errors.Errorf("read register %#x ack too short %d", addr, len(resp))
	}
	return [4]byte(resp[:4]), nil
}

func (c *Client) WriteRegister(addr uint64, value [4]byte) error {
	if addr > 0xffffffff {
		return errors.Errorf("register address %#x overflow 32bit", addr)
	}

	var req = binary.BigEndian.AppendUint32(make([]byte, 0, 8), uint32(addr))
	req = append(req, value[:]...)
	_, err := c.transact(writeRegCmd, writeRegAck, req)
	return errors.WithMessagef(err, "write register %#x", addr)
}

func (c *Client) transact(cmd, ack uint16, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reqID++
	if c.reqID == 0 {
		c.reqID = 1
	}
	var (
		id  = c.reqID
		req = make([]byte, headerSize, headerSize+len(payload))
		pkt = packet.Make(maxAckSize)
	)
	req[0], req[1] = cmdKey, flagAckReq
	binary.BigEndian.PutUint16(req[2:4], cmd)
	binary.BigEndian.PutUint16(req[4:6], uint16(len(payload)))
	binary.BigEndian.PutUint16(req[6:8], id)
	req = append(req, payload...)

	for i := 0; i < c.config.Retries; i++ {
		if err := c.conn.Write(packet.From(req)); err != nil {
			return nil, err
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.Timeout)); err != nil {
			return nil, err
		}

		for {
			err := c.conn.Read(pkt.Sets(0, 0xffff))
			if err != nil {
				if conn.Timeout(err) {
					c.config.logger.Warn("gvcp ack timeout", slog.Int("cmd", int(cmd)), slog.Int("attempt", i+1))
					break
				}
				return nil, err
			}

			b := pkt.Bytes()
			if len(b) < headerSize {
				continue
			} else if binary.BigEndian.Uint16(b[6:8]) != id {
				continue // stale ack of previous attempt
			}

			if answer := binary.BigEndian.Uint16(b[2:4]); answer != ack {
				return nil, errors.Errorf("unexpected ack %#04x, require %#04x", answer, ack)
			}
			if status := binary.BigEndian.Uint16(b[0:2]); status != 0 {
				return nil, errors.WithMessagef(ErrAck, "%#04x", status)
			}
			n := int(binary.BigEndian.Uint16(b[4:6]))
			if len(b)-headerSize < n {
				return nil, errors.Errorf("ack length %d, but only %d", n, len(b)-headerSize)
			}
			return b[headerSize : headerSize+n], nil
		}
	}
	return nil, errors.Errorf("no ack after %d attempts", c.config.Retries)
}

// Heartbeat keep control privilege alive until ctx done, camera drop the
// privilege if nothing is read in heartbeat timeout (3s by default).
func (c *Client) Heartbeat(ctx context.Context, interval time.Duration) error {
	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.ReadRegister(ControlChannelPrivilege); err != nil {
				c.config.logger.Warn(err.Error(), errorx.Trace(err))
			}
		}
	}
}

func (c *Client) Close() error { return c.close(nil) }
