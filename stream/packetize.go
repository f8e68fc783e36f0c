package stream

import (
	"github.com/lysShub/gige-stream/gvsp"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

// Packetize split raw frame into leader, generic and trailer datagrams,
// as a camera transmit it. The last generic payload is not padded.
func Packetize(blockID uint64, leader gvsp.LeaderInfo, raw []byte, chunkSize int, extended bool) ([]*packet.Packet, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("invalid chunk size %d", chunkSize)
	}
	if leader.PayloadType == 0 {
		leader.PayloadType = gvsp.PayloadImage
	}
	var hdr = gvsp.Fields{BlockID: blockID, Extended: extended}
	var pkts = make([]*packet.Packet, 0, len(raw)/chunkSize+3)

	pkt := packet.Make(gvsp.ExtendedHeaderSize, 0, gvsp.LeaderSize)
	hdr.Format = gvsp.Leader
	if err := leader.Encode(pkt); err != nil {
		return nil, err
	} else if err := hdr.Encode(pkt); err != nil {
		return nil, err
	}
	pkts = append(pkts, pkt)

	hdr.Format = gvsp.Generic
	for i := 0; i*chunkSize < len(raw); i++ {
		payload := raw[i*chunkSize : min((i+1)*chunkSize, len(raw))]
		pkt := packet.Make(gvsp.ExtendedHeaderSize, 0, len(payload)).Append(payload...)

		hdr.PacketID = uint32(i + 1)
		if err := hdr.Encode(pkt); err != nil {
			return nil, err
		}
		pkts = append(pkts, pkt)
	}

	pkt = packet.Make(gvsp.ExtendedHeaderSize, 0, gvsp.TrailerSize)
	hdr.Format, hdr.PacketID = gvsp.Trailer, uint32(len(pkts))
	var trailer = gvsp.TrailerInfo{PayloadType: leader.PayloadType, Height: leader.Height}
	if err := trailer.Encode(pkt); err != nil {
		return nil, err
	} else if err := hdr.Encode(pkt); err != nil {
		return nil, err
	}
	return append(pkts, pkt), nil
}
