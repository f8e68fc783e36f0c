package conn

import (
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/lysShub/netkit/debug"
	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// UDPConn datagram socket, refer net.UDPConn, only one goroutine should
// read it at a time.
type UDPConn struct {
	conn  *net.UDPConn
	batch *ipv4.PacketConn
	msgs  []ipv4.Message
}

func Bind(laddr netip.AddrPort) (*UDPConn, error) {
	if laddr.IsValid() && !laddr.Addr().Is4() {
		return nil, errors.Errorf("only support ipv4 %s", laddr.String())
	}
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(laddr))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newConn(conn), nil
}

func Dial(laddr, raddr netip.AddrPort) (*UDPConn, error) {
	if !raddr.Addr().Is4() {
		return nil, errors.Errorf("only support ipv4 %s", raddr.String())
	}
	var l *net.UDPAddr
	if laddr.IsValid() {
		l = net.UDPAddrFromAddrPort(laddr)
	}
	conn, err := net.DialUDP("udp4", l, net.UDPAddrFromAddrPort(raddr))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newConn(conn), nil
}

func newConn(conn *net.UDPConn) *UDPConn {
	return &UDPConn{conn: conn, batch: ipv4.NewPacketConn(conn)}
}

func (c *UDPConn) Read(b *packet.Packet) error {
	n, err := c.conn.Read(b.Bytes())
	if err != nil {
		return errors.WithStack(err)
	}
	b.SetData(n)
	return nil
}

func (c *UDPConn) Write(b *packet.Packet) error {
	_, err := c.conn.Write(b.Bytes())
	return errors.WithStack(err)
}

func (c *UDPConn) ReadFromAddrPort(b *packet.Packet) (netip.AddrPort, error) {
	n, addr, err := c.conn.ReadFromUDPAddrPort(b.Bytes())
	if err != nil {
		return netip.AddrPort{}, errors.WithStack(err)
	}
	if debug.Debug() && n == b.Data() {
		slog.Warn("too short warning", errorx.Trace(nil))
	}
	b.SetData(n)
	return addr, nil
}

func (c *UDPConn) WriteToAddrPort(b *packet.Packet, dst netip.AddrPort) error {
	_, err := c.conn.WriteToUDPAddrPort(b.Bytes(), dst)
	return errors.WithStack(err)
}

// ReadBatch read up to len(pkts) datagrams in one call (recvmmsg on linux),
// every packet's data is set to received datagram, return read count.
func (c *UDPConn) ReadBatch(pkts []*packet.Packet) (int, error) {
	if len(c.msgs) < len(pkts) {
		c.msgs = make([]ipv4.Message, len(pkts))
		for i := range c.msgs {
			c.msgs[i].Buffers = make([][]byte, 1)
		}
	}
	msgs := c.msgs[:len(pkts)]
	for i, pkt := range pkts {
		msgs[i].Buffers[0] = pkt.Bytes()
	}

	n, err := c.batch.ReadBatch(msgs, 0)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	for i := 0; i < n; i++ {
		if debug.Debug() && msgs[i].N == pkts[i].Data() {
			slog.Warn("too short warning", errorx.Trace(nil))
		}
		pkts[i].SetData(msgs[i].N)
	}
	return n, nil
}

func (c *UDPConn) SetReadDeadline(t time.Time) error {
	return errors.WithStack(c.conn.SetReadDeadline(t))
}

// SetReadBuffer set socket receive buffer, privileged process can exceed rmem_max.
func (c *UDPConn) SetReadBuffer(size int) error {
	return setReadBuffer(c.conn, size)
}

func (c *UDPConn) LocalAddr() netip.AddrPort {
	return c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (c *UDPConn) RemoteAddr() netip.AddrPort {
	if addr, ok := c.conn.RemoteAddr().(*net.UDPAddr); ok {
		return addr.AddrPort()
	}
	return netip.AddrPort{}
}

func (c *UDPConn) Close() error { return errors.WithStack(c.conn.Close()) }

// Timeout reports whether err is caused by read/write deadline.
func Timeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
