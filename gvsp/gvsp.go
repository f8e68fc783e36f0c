package gvsp

import (
	"encoding/binary"
	"fmt"

	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

var (
	ErrMalformedHeader       = errors.New("malformed gvsp header")
	ErrUnknownFormat         = errors.New("unknown gvsp packet format")
	ErrUnexpectedPayloadType = errors.New("unexpected gvsp payload type")
)

const (
	HeaderSize         = 8
	ExtendedHeaderSize = HeaderSize + 8 + 4
)

/*
	GVSP packet header
	{
		Status(2B)     : device status, 0 is success
		BlockID(2B)    : frame id, zero when extended
		EI-Flag(1b)    : extended id, 64bit block id and 32bit packet id follow
		Reserved(4b)   :
		Format(3b)     : leader, trailer, generic payload ...
		PacketID(3B)   : chunk index in block, leader is 0

		if EI-Flag {
			BlockID(8B)  :
			PacketID(4B) :
		}
	}
*/

type Header []byte

func (h Header) Status() uint16 {
	return binary.BigEndian.Uint16(h[0:2])
}
func (h Header) SetStatus(status uint16) {
	binary.BigEndian.PutUint16(h[0:2], status)
}
func (h Header) Extended() bool {
	return h[4]&0x80 != 0
}
func (h Header) Format() Format {
	return Format(h[4] & 0x07)
}
func (h Header) BlockID() uint64 {
	if h.Extended() {
		return binary.BigEndian.Uint64(h[8:16])
	}
	return uint64(binary.BigEndian.Uint16(h[2:4]))
}
func (h Header) PacketID() uint32 {
	if h.Extended() {
		return binary.BigEndian.Uint32(h[16:20])
	}
	return uint32(h[5])<<16 + uint32(h[6])<<8 + uint32(h[7])
}
func (h Header) Size() int {
	if h.Extended() {
		return ExtendedHeaderSize
	}
	return HeaderSize
}

type Format uint8

const (
	_ Format = iota
	Leader
	Trailer
	Generic
)

func (f Format) Valid() bool {
	return Leader <= f && f <= Generic
}

func (f Format) String() string {
	switch f {
	case Leader:
		return "Leader"
	case Trailer:
		return "Trailer"
	case Generic:
		return "Generic"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

type Fields struct {
	Status   uint16
	BlockID  uint64 // 16bit unless Extended
	Extended bool
	Format   Format
	PacketID uint32 // 24bit unless Extended
}

func (f Fields) String() string {
	return fmt.Sprintf(
		"{Status:%#04x, BlockID:%d, Extended:%t, Format:%s, PacketID:%d}",
		f.Status, f.BlockID, f.Extended, f.Format.String(), f.PacketID,
	)
}

// Decode parse header from packet, and detach it, the packet's remaining
// bytes are format specific payload. Unknown format is reported with
// ErrUnknownFormat after the header is decoded.
func (f *Fields) Decode(from *packet.Packet) error {
	b := from.Bytes()
	if len(b) < HeaderSize {
		return errors.WithMessagef(ErrMalformedHeader, "too short %d", len(b))
	}
	h := Header(b)
	if h.Extended() && len(b) < ExtendedHeaderSize {
		return errors.WithMessagef(ErrMalformedHeader, "extended too short %d", len(b))
	}

	f.Status = h.Status()
	f.Extended = h.Extended()
	f.Format = h.Format()
	f.BlockID = h.BlockID()
	f.PacketID = h.PacketID()

	from.DetachN(h.Size())
	if !f.Format.Valid() {
		return errors.WithMessagef(ErrUnknownFormat, "format %d", uint8(f.Format))
	}
	return nil
}

func (f *Fields) Encode(to *packet.Packet) error {
	if !f.Format.Valid() {
		return errors.WithMessagef(ErrUnknownFormat, "format %d", uint8(f.Format))
	}

	var hdr []byte
	if f.Extended {
		hdr = make([]byte, ExtendedHeaderSize)
		hdr[4] = 0x80
		binary.BigEndian.PutUint64(hdr[8:16], f.BlockID)
		binary.BigEndian.PutUint32(hdr[16:20], f.PacketID)
	} else {
		if f.BlockID > 0xffff {
			return errors.Errorf("block id %d overflow 16bit", f.BlockID)
		} else if f.PacketID > 0xffffff {
			return errors.Errorf("packet id %d overflow 24bit", f.PacketID)
		}
		hdr = make([]byte, HeaderSize)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(f.BlockID))
		hdr[5], hdr[6], hdr[7] = byte(f.PacketID>>16), byte(f.PacketID>>8), byte(f.PacketID)
	}
	hdr[4] |= byte(f.Format)
	binary.BigEndian.PutUint16(hdr[0:2], f.Status)

	to.Attach(hdr...)
	return nil
}
