package sdp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var itunesAnnounce = []byte("v=0\r\n" +
	"o=iTunes 3413821438 0 IN IP4 fe80::217:f2ff:fe0f:e0f6\r\n" +
	"s=iTunes\r\n" +
	"c=IN IP4 fe80::5a55:caff:fe1a:e187\r\n" +
	"t=0 0\r\n" +
	"m=audio 0 RTP/AVP 96\r\n" +
	"a=rtpmap:96 AppleLossless\r\n" +
	"a=fmtp:96 352 0 16 40 10 14 2 255 0 0 44100\r\n" +
	"a=rsaaeskey:5QYIqmdZGTONY5SHjEJrqAhaa0W9wzDC5i6q221mdGZJ5ubO6Kg\r\n" +
	"a=aesiv:zcZmAZtqh7uGcEwPXk0QeA\r\n" +
	"a=min-latency:11025\r\n")

func TestSessionDescriptionUnmarshal(t *testing.T) {
	var sd SessionDescription
	err := sd.Unmarshal(itunesAnnounce)
	require.NoError(t, err)

	require.Equal(t, "iTunes", sd.Origin.Username)
	require.Equal(t, uint64(3413821438), sd.Origin.SessionID)
	require.Equal(t, "fe80::217:f2ff:fe0f:e0f6", sd.Origin.UnicastAddress)
	require.Equal(t, "iTunes", string(sd.SessionName))
	require.Equal(t, "fe80::5a55:caff:fe1a:e187", sd.ConnectionInformation.Address.Address)
	require.Len(t, sd.MediaDescriptions, 1)

	md := sd.MediaDescriptions[0]
	require.Equal(t, "audio", md.MediaName.Media)
	require.Equal(t, []string{"RTP", "AVP"}, md.MediaName.Protos)
	require.Equal(t, []string{"96"}, md.MediaName.Formats)

	v, ok := md.Attribute("rtpmap")
	require.True(t, ok)
	require.Equal(t, "96 AppleLossless", v)
}

func TestSessionDescriptionUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		byts string
	}{
		{"invalid line", "v=0\r\nthis is not sdp\r\n"},
		{"invalid version", "v=1\r\n"},
		{"invalid origin", "v=0\r\no=iTunes\r\n"},
		{"invalid connection", "v=0\r\nc=ATM NSAP x\r\n"},
		{"invalid media", "v=0\r\nm=audio\r\n"},
		{"invalid port", "v=0\r\nm=audio abc RTP/AVP 96\r\n"},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var sd SessionDescription
			err := sd.Unmarshal([]byte(ca.byts))
			require.Error(t, err)
		})
	}
}

func TestAnnounceUnmarshal(t *testing.T) {
	var a Announce
	err := a.Unmarshal(itunesAnnounce)
	require.NoError(t, err)
	require.Equal(t, Announce{
		ConnectionAddress: "fe80::5a55:caff:fe1a:e187",
		RTPMap:            "96 AppleLossless",
		FMTP:              "96 352 0 16 40 10 14 2 255 0 0 44100",
		RSAAESKey:         "5QYIqmdZGTONY5SHjEJrqAhaa0W9wzDC5i6q221mdGZJ5ubO6Kg",
		AESIV:             "zcZmAZtqh7uGcEwPXk0QeA",
		MinLatency:        11025,
	}, a)
	require.True(t, a.Encrypted())
}

func TestAnnounceSessionAttributes(t *testing.T) {
	var a Announce
	err := a.Unmarshal([]byte("v=0\n" +
		"o=AirPlay 0 0 IN IP4 192.168.1.2\n" +
		"a=rtpmap:96 L16/44100/2\n" +
		"a=min-latency:abc\n" +
		"m=audio 0 RTP/AVP 96\n"))
	require.NoError(t, err)
	require.Equal(t, "96 L16/44100/2", a.RTPMap)
	require.Equal(t, uint32(0), a.MinLatency)
	require.False(t, a.Encrypted())
}

func TestAnnounceMissingRTPMap(t *testing.T) {
	var a Announce
	err := a.Unmarshal([]byte("v=0\r\nm=audio 0 RTP/AVP 96\r\n"))
	require.Error(t, err)
}
