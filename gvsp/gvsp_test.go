package gvsp_test

import (
	"testing"

	"github.com/lysShub/gige-stream/gvsp"
	"github.com/lysShub/netkit/packet"
	"github.com/stretchr/testify/require"
)

func Test_Header(t *testing.T) {
	t.Run("standard", func(t *testing.T) {
		var b = []byte{0x00, 0x01, 0x12, 0x34, 0x03, 0x01, 0x02, 0x03, 0xaa, 0xbb}
		var pkt = packet.From(b)

		var f gvsp.Fields
		require.NoError(t, f.Decode(pkt))
		require.Equal(t, gvsp.Fields{
			Status:   1,
			BlockID:  0x1234,
			Format:   gvsp.Generic,
			PacketID: 0x010203,
		}, f)
		require.Equal(t, []byte{0xaa, 0xbb}, pkt.Bytes())
	})

	t.Run("extended", func(t *testing.T) {
		var b = []byte{
			0x00, 0x00, 0x00, 0x00, 0x82, 0x00, 0x00, 0x00,
			0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
			0xde, 0xad, 0xbe, 0xef,
		}
		var pkt = packet.From(b)

		var f gvsp.Fields
		require.NoError(t, f.Decode(pkt))
		require.True(t, f.Extended)
		require.Equal(t, gvsp.Trailer, f.Format)
		require.Equal(t, uint64(0x0102030405060708), f.BlockID)
		require.Equal(t, uint32(0xdeadbeef), f.PacketID)
		require.Zero(t, pkt.Data())
	})

	t.Run("round-trip", func(t *testing.T) {
		for _, f1 := range []gvsp.Fields{
			{Status: 0x8001, BlockID: 7, Format: gvsp.Generic, PacketID: 0xfffffe},
			{Status: 0, BlockID: 0xffff, Format: gvsp.Leader, PacketID: 0},
			{BlockID: 0x1122334455667788, Extended: true, Format: gvsp.Generic, PacketID: 0x99aabbcc},
		} {
			var pkt = packet.From([]byte("payload"))
			require.NoError(t, f1.Encode(pkt))

			var f2 gvsp.Fields
			require.NoError(t, f2.Decode(pkt))
			require.Equal(t, f1, f2)
			require.Equal(t, "payload", string(pkt.Bytes()))
		}
	})

	t.Run("malformed", func(t *testing.T) {
		var f gvsp.Fields
		err := f.Decode(packet.From([]byte{0, 0, 0, 1, 3}))
		require.ErrorIs(t, err, gvsp.ErrMalformedHeader)

		err = f.Decode(packet.From([]byte{0, 0, 0, 0, 0x83, 0, 0, 1, 0, 0}))
		require.ErrorIs(t, err, gvsp.ErrMalformedHeader)
	})

	t.Run("unknown format", func(t *testing.T) {
		var f gvsp.Fields
		err := f.Decode(packet.From([]byte{0, 0, 0, 9, 0x05, 0, 0, 1}))
		require.ErrorIs(t, err, gvsp.ErrUnknownFormat)
		require.Equal(t, gvsp.Format(5), f.Format)
		require.Equal(t, uint64(9), f.BlockID)
		require.Equal(t, "Unknown(5)", f.Format.String())
	})

	t.Run("overflow", func(t *testing.T) {
		var f = gvsp.Fields{BlockID: 0x10000, Format: gvsp.Generic}
		require.Error(t, f.Encode(packet.Make(128, 0)))
	})
}

func Test_Leader(t *testing.T) {
	t.Run("round-trip", func(t *testing.T) {
		var l1 = gvsp.LeaderInfo{
			PayloadType: gvsp.PayloadImage,
			Timestamp:   0x0102030405060708,
			PixelFormat: gvsp.BayerRG8,
			Width:       64,
			Height:      48,
			OffsetX:     2,
			OffsetY:     4,
			PaddingX:    1,
			PaddingY:    3,
		}
		var pkt = packet.Make(128, 0)
		require.NoError(t, l1.Encode(pkt))
		require.Equal(t, gvsp.LeaderSize, pkt.Data())

		var l2 gvsp.LeaderInfo
		require.NoError(t, l2.Decode(pkt))
		require.Equal(t, l1, l2)
	})

	t.Run("payload type", func(t *testing.T) {
		var l1 = gvsp.LeaderInfo{PayloadType: 3, PixelFormat: gvsp.BayerRG8, Width: 1, Height: 1}
		var pkt = packet.Make(128, 0)
		require.NoError(t, l1.Encode(pkt))

		var l2 gvsp.LeaderInfo
		require.ErrorIs(t, l2.Decode(pkt), gvsp.ErrUnexpectedPayloadType)
	})

	t.Run("short", func(t *testing.T) {
		var l gvsp.LeaderInfo
		require.ErrorIs(t, l.Decode(packet.From(make([]byte, 10))), gvsp.ErrMalformedHeader)
	})
}

func Test_Trailer(t *testing.T) {
	var t1 = gvsp.TrailerInfo{PayloadType: gvsp.PayloadImage, Height: 48}
	var pkt = packet.Make(128, 0)
	require.NoError(t, t1.Encode(pkt))

	var t2 gvsp.TrailerInfo
	require.NoError(t, t2.Decode(pkt))
	require.Equal(t, t1, t2)

	var t3 gvsp.TrailerInfo
	require.NoError(t, t3.Decode(packet.Make(128, 0)))
	require.Equal(t, gvsp.PayloadImage, t3.PayloadType)
}

func Test_PixelFormat(t *testing.T) {
	require.Equal(t, 8, gvsp.BayerRG8.Bits())
	require.Equal(t, 24, gvsp.RGB8.Bits())
	require.Equal(t, "BayerRG8", gvsp.BayerRG8.String())
}
