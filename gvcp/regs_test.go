package gvcp_test

import (
	"net/netip"
	"testing"

	"github.com/lysShub/gige-stream/gvcp"
	"github.com/stretchr/testify/require"
)

type memRegs map[uint64][4]byte

func (m memRegs) ReadRegister(addr uint64) ([4]byte, error) { return m[addr], nil }
func (m memRegs) WriteRegister(addr uint64, value [4]byte) error {
	m[addr] = value
	return nil
}

func Test_Channel(t *testing.T) {
	require.Equal(t, uint64(0x0D04), gvcp.Channel(0).Addr(gvcp.StreamChannelPacketSize))
	require.Equal(t, uint64(0x0D44), gvcp.Channel(1).Addr(gvcp.StreamChannelPacketSize))
	require.Equal(t, uint64(0x0D98), gvcp.Channel(2).Addr(gvcp.StreamChannelDestination))
	require.Equal(t, uint64(0x0D5C), gvcp.Channel(1).Addr(gvcp.StreamChannelSourcePort))

	var regs = memRegs{}
	dst := netip.MustParseAddrPort("192.168.1.10:50010")
	require.NoError(t, gvcp.Channel(1).SetDestination(regs, dst))
	require.Equal(t, [4]byte{192, 168, 1, 10}, regs[0x0D58])
	require.Equal(t, [4]byte{0, 0, 0xc3, 0x5a}, regs[0x0D40])

	got, err := gvcp.Channel(1).Destination(regs)
	require.NoError(t, err)
	require.Equal(t, dst, got)

	regs[0x0D1C] = [4]byte{0, 0, 0x4e, 0xea}
	port, err := gvcp.Channel(0).SourcePort(regs)
	require.NoError(t, err)
	require.Equal(t, uint16(20202), port)

	require.NoError(t, gvcp.Channel(0).SetPacketSize(regs, gvcp.DoNotFragment, 9000))
	require.Equal(t, [4]byte{0x40, 0, 0x23, 0x28}, regs[0x0D04])
	size, err := gvcp.Channel(0).PacketSize(regs)
	require.NoError(t, err)
	require.Equal(t, uint16(9000), size)

	require.NoError(t, gvcp.TakeControl(regs, false))
	require.Equal(t, [4]byte{0, 0, 0, 2}, regs[gvcp.ControlChannelPrivilege])
	require.NoError(t, gvcp.ReleaseControl(regs))
	require.Equal(t, [4]byte{}, regs[gvcp.ControlChannelPrivilege])
}
