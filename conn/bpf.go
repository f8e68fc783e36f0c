package conn

import "golang.org/x/net/bpf"

// FilterSourcePort accept datagrams from srcPort only, socket filter of udp
// socket see the packet start from udp header.
func FilterSourcePort(srcPort uint16) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(srcPort), SkipFalse: 1},
		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	}
}
