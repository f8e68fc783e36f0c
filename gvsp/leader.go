package gvsp

import (
	"encoding/binary"
	"fmt"

	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

// PayloadImage is the only payload type carried by leader/trailer.
const PayloadImage uint16 = 1

const (
	LeaderSize  = 36
	TrailerSize = 8
)

/*
	image leader payload
	{
		Reserved(2B)    :
		PayloadType(2B) : 1 is image
		Timestamp(8B)   : device tick
		PixelFormat(4B) :
		SizeX(4B)       :
		SizeY(4B)       :
		OffsetX(4B)     :
		OffsetY(4B)     :
		PaddingX(2B)    :
		PaddingY(2B)    :
	}
*/

type LeaderInfo struct {
	PayloadType uint16
	Timestamp   uint64
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	OffsetX     uint32
	OffsetY     uint32
	PaddingX    uint16
	PaddingY    uint16
}

func (l LeaderInfo) String() string {
	return fmt.Sprintf("{%dx%d+%d+%d %s ts:%d}", l.Width, l.Height, l.OffsetX, l.OffsetY, l.PixelFormat, l.Timestamp)
}

func (l *LeaderInfo) Decode(from *packet.Packet) error {
	b := from.Bytes()
	if len(b) < LeaderSize {
		return errors.WithMessagef(ErrMalformedHeader, "leader too short %d", len(b))
	}

	l.PayloadType = binary.BigEndian.Uint16(b[2:4])
	if l.PayloadType != PayloadImage {
		return errors.WithMessagef(ErrUnexpectedPayloadType, "payload type %#04x", l.PayloadType)
	}
	l.Timestamp = binary.BigEndian.Uint64(b[4:12])
	l.PixelFormat = PixelFormat(binary.BigEndian.Uint32(b[12:16]))
	l.Width = binary.BigEndian.Uint32(b[16:20])
	l.Height = binary.BigEndian.Uint32(b[20:24])
	l.OffsetX = binary.BigEndian.Uint32(b[24:28])
	l.OffsetY = binary.BigEndian.Uint32(b[28:32])
	l.PaddingX = binary.BigEndian.Uint16(b[32:34])
	l.PaddingY = binary.BigEndian.Uint16(b[34:36])

	from.DetachN(LeaderSize)
	return nil
}

func (l *LeaderInfo) Encode(to *packet.Packet) error {
	var b = make([]byte, LeaderSize)
	binary.BigEndian.PutUint16(b[2:4], l.PayloadType)
	binary.BigEndian.PutUint64(b[4:12], l.Timestamp)
	binary.BigEndian.PutUint32(b[12:16], uint32(l.PixelFormat))
	binary.BigEndian.PutUint32(b[16:20], l.Width)
	binary.BigEndian.PutUint32(b[20:24], l.Height)
	binary.BigEndian.PutUint32(b[24:28], l.OffsetX)
	binary.BigEndian.PutUint32(b[28:32], l.OffsetY)
	binary.BigEndian.PutUint16(b[32:34], l.PaddingX)
	binary.BigEndian.PutUint16(b[34:36], l.PaddingY)

	to.Attach(b...)
	return nil
}

type TrailerInfo struct {
	PayloadType uint16
	Height      uint32 // opt, actual lines transmitted, zero if absent
}

// Decode trailer payload, a trailer shorter than TrailerSize only carry
// payload type, some devices omit it entirely.
func (t *TrailerInfo) Decode(from *packet.Packet) error {
	b := from.Bytes()
	switch {
	case len(b) >= TrailerSize:
		t.Height = binary.BigEndian.Uint32(b[4:8])
		fallthrough
	case len(b) >= 4:
		t.PayloadType = binary.BigEndian.Uint16(b[2:4])
	default:
		t.PayloadType = PayloadImage
	}
	from.DetachN(min(len(b), TrailerSize))
	return nil
}

func (t *TrailerInfo) Encode(to *packet.Packet) error {
	var b = make([]byte, TrailerSize)
	binary.BigEndian.PutUint16(b[2:4], t.PayloadType)
	binary.BigEndian.PutUint32(b[4:8], t.Height)

	to.Attach(b...)
	return nil
}
