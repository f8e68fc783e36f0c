package gvsp

import "fmt"

// PixelFormat is GenICam PFNC pixel format code.
type PixelFormat uint32

const (
	Mono8    PixelFormat = 0x01080001
	BayerGR8 PixelFormat = 0x01080008
	BayerRG8 PixelFormat = 0x01080009
	BayerGB8 PixelFormat = 0x0108000A
	BayerBG8 PixelFormat = 0x0108000B
	RGB8     PixelFormat = 0x02180014
)

// Bits per pixel, from PFNC occupy-bits field
func (p PixelFormat) Bits() int {
	return int(p>>16) & 0xff
}

func (p PixelFormat) String() string {
	switch p {
	case Mono8:
		return "Mono8"
	case BayerGR8:
		return "BayerGR8"
	case BayerRG8:
		return "BayerRG8"
	case BayerGB8:
		return "BayerGB8"
	case BayerBG8:
		return "BayerBG8"
	case RGB8:
		return "RGB8"
	default:
		return fmt.Sprintf("PixelFormat(%#08x)", uint32(p))
	}
}
