package gvcp

import (
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

// bootstrap registers
const (
	NumberOfMessageChannels uint64 = 0x0900
	NumberOfStreamChannels  uint64 = 0x0904
	ControlChannelPrivilege uint64 = 0x0A00

	MessageChannelPort        uint64 = 0x0B00 // MCP
	MessageChannelDestination uint64 = 0x0B10 // MCDA

	// per stream channel, see Channel.Addr
	StreamChannelPort        uint64 = 0x0D00 // SCP
	StreamChannelPacketSize  uint64 = 0x0D04 // SCPS
	StreamChannelDestination uint64 = 0x0D18 // SCDA
	StreamChannelSourcePort  uint64 = 0x0D1C // SCSP

	channelStride uint64 = 0x40
)

// SCPS flags, the high byte of packet size register
const (
	FireTestPacket byte = 0x80
	DoNotFragment  byte = 0x40
)

const (
	privilegeExclusive uint32 = 0x1
	privilegeControl   uint32 = 0x2
)

// Registers is camera register access over control channel, address is
// register offset, value is 4 bytes big endian.
type Registers interface {
	ReadRegister(addr uint64) ([4]byte, error)
	WriteRegister(addr uint64, value [4]byte) error
}

func PacketSizeValue(flags byte, size uint16) [4]byte {
	return [4]byte{flags, 0, byte(size >> 8), byte(size)}
}

func PacketSize(value [4]byte) uint16 {
	return binary.BigEndian.Uint16(value[2:4])
}

// Channel stream channel index
type Channel uint32

func (c Channel) Addr(reg uint64) uint64 {
	return reg + channelStride*uint64(c)
}

func (c Channel) PacketSize(regs Registers) (uint16, error) {
	v, err := regs.ReadRegister(c.Addr(StreamChannelPacketSize))
	if err != nil {
		return 0, err
	}
	return PacketSize(v), nil
}

func (c Channel) SetPacketSize(regs Registers, flags byte, size uint16) error {
	return regs.WriteRegister(c.Addr(StreamChannelPacketSize), PacketSizeValue(flags, size))
}

// SetDestination set stream channel destination ip and port, it's where
// the camera send stream and test packets.
func (c Channel) SetDestination(regs Registers, dst netip.AddrPort) error {
	if !dst.Addr().Is4() {
		return errors.Errorf("only support ipv4 %s", dst.String())
	}
	if err := regs.WriteRegister(c.Addr(StreamChannelDestination), dst.Addr().As4()); err != nil {
		return err
	}
	var port [4]byte
	binary.BigEndian.PutUint16(port[2:], dst.Port())
	return regs.WriteRegister(c.Addr(StreamChannelPort), port)
}

func (c Channel) Destination(regs Registers) (netip.AddrPort, error) {
	ip, err := regs.ReadRegister(c.Addr(StreamChannelDestination))
	if err != nil {
		return netip.AddrPort{}, err
	}
	port, err := regs.ReadRegister(c.Addr(StreamChannelPort))
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(netip.AddrFrom4(ip), binary.BigEndian.Uint16(port[2:])), nil
}

// SourcePort the udp port that camera send stream from.
func (c Channel) SourcePort(regs Registers) (uint16, error) {
	v, err := regs.ReadRegister(c.Addr(StreamChannelSourcePort))
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v[2:]), nil
}

func StreamChannels(regs Registers) (int, error) {
	v, err := regs.ReadRegister(NumberOfStreamChannels)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(v[:])), nil
}

func TakeControl(regs Registers, exclusive bool) error {
	var p = privilegeControl
	if exclusive {
		p |= privilegeExclusive
	}
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], p)
	return regs.WriteRegister(ControlChannelPrivilege, v)
}

func ReleaseControl(regs Registers) error {
	return regs.WriteRegister(ControlChannelPrivilege, [4]byte{})
}
