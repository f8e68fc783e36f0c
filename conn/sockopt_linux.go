//go:build linux
// +build linux

package conn

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setReadBuffer(conn *net.UDPConn, size int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return errors.WithStack(err)
	}

	var e error
	if err := raw.Control(func(fd uintptr) {
		e = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, size)
	}); err != nil {
		return errors.WithStack(err)
	}
	if e != nil {
		// require CAP_NET_ADMIN, fallback limited by rmem_max
		return errors.WithStack(conn.SetReadBuffer(size))
	}
	return nil
}
