//go:build linux
// +build linux

package conn

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

func (c *UDPConn) AttachFilter(ins []bpf.Instruction) error {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return errors.WithStack(err)
	}

	var e error
	if err := raw.Control(func(fd uintptr) {
		e = attachBPF(fd, ins)
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(e)
}

// attachBPF attach filter after drain datagrams queued before the filter,
// they are never filtered otherwise.
func attachBPF(fd uintptr, ins []bpf.Instruction) error {
	err := setBPF(fd, []bpf.Instruction{bpf.RetConstant{Val: 0}})
	if err != nil {
		return err
	}
	var b = make([]byte, 1)
	for {
		_, _, err := unix.Recvfrom(int(fd), b, unix.MSG_DONTWAIT)
		if err != nil {
			break
		}
	}
	return setBPF(fd, ins)
}

func setBPF(fd uintptr, ins []bpf.Instruction) error {
	var prog *unix.SockFprog
	if rawIns, err := bpf.Assemble(ins); err != nil {
		return err
	} else {
		prog = &unix.SockFprog{
			Len:    uint16(len(rawIns)),
			Filter: (*unix.SockFilter)(unsafe.Pointer(&rawIns[0])),
		}
	}

	return unix.SetsockoptSockFprog(
		int(fd), unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog,
	)
}
