package rtpcontrol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimingMarshal(t *testing.T) {
	p := Timing{
		Origin:   0x0102030405060708,
		Receive:  0,
		Transmit: 0x1112131415161718,
	}
	buf := p.Marshal()
	require.Equal(t, []byte{
		0x80, 0xd2, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
	}, buf)
}

func TestTimingUnmarshal(t *testing.T) {
	buf := []byte{
		0x80, 0xd3, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
	}

	var p Timing
	err := p.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, Timing{
		Response: true,
		Origin:   1,
		Receive:  2,
		Transmit: 3,
	}, p)

	err = p.Unmarshal(buf[:31])
	require.Error(t, err)
}

func TestSyncUnmarshal(t *testing.T) {
	buf := []byte{
		0x90, 0xd4, 0x00, 0x07,
		0x00, 0x00, 0x10, 0x00,
		0x00, 0x00, 0x00, 0x05, 0x80, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x20, 0x00,
	}

	var p Sync
	err := p.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, Sync{
		PlayingRTPTime: 0x1000,
		NTPTime:        5<<32 | 0x80000000,
		RTPTime:        0x2000,
	}, p)
	require.Equal(t, []byte{0x80, 0xd4}, p.Marshal()[:2])

	err = p.Unmarshal(buf[:19])
	require.Error(t, err)
}

func TestResendRequest(t *testing.T) {
	p := ResendRequest{
		SequenceNumber:        1,
		MissingSequenceNumber: 0xfffe,
		Count:                 3,
	}
	buf := p.Marshal()
	require.Equal(t, []byte{0x80, 0xd5, 0x00, 0x01, 0xff, 0xfe, 0x00, 0x03}, buf)

	var dec ResendRequest
	err := dec.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, p, dec)
}

func TestRetransmit(t *testing.T) {
	inner := []byte{0x80, 0x60, 0x00, 0x05, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2}
	buf := append([]byte{0x80, 0xd6, 0x00, 0x01}, inner...)

	pkt, err := Retransmit(buf)
	require.NoError(t, err)
	require.Equal(t, inner, pkt)

	_, err = Retransmit(buf[:10])
	require.Error(t, err)

	_, err = Retransmit([]byte{0x80, 0xd4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestType(t *testing.T) {
	typ, err := Type([]byte{0x80, 0xd4})
	require.NoError(t, err)
	require.Equal(t, PacketTypeSync, typ)
	require.Equal(t, "sync", typ.String())

	_, err = Type([]byte{0x80})
	require.Error(t, err)
}
