//go:build !linux
// +build !linux

package conn

import (
	"net"

	"github.com/pkg/errors"
)

func setReadBuffer(conn *net.UDPConn, size int) error {
	return errors.WithStack(conn.SetReadBuffer(size))
}
