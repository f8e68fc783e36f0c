//go:build !linux
// +build !linux

package conn

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/net/bpf"
)

func (c *UDPConn) AttachFilter(ins []bpf.Instruction) error {
	return errors.Errorf("socket filter not support %s", runtime.GOOS)
}
