package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var casesRequest = []struct {
	name string
	byts []byte
	req  Request
}{
	{
		"options",
		[]byte("OPTIONS * RTSP/1.0\r\n" +
			"Apple-Challenge: PQyAqeXgOG5ZdDNVnq0Ceg\r\n" +
			"CSeq: 1\r\n" +
			"\r\n"),
		Request{
			Method: Options,
			URL:    "*",
			Proto:  ProtocolRTSP10,
			Header: Header{
				"CSeq":            HeaderValue{"1"},
				"Apple-Challenge": HeaderValue{"PQyAqeXgOG5ZdDNVnq0Ceg"},
			},
		},
	},
	{
		"announce",
		[]byte("ANNOUNCE rtsp://192.168.1.2/3413821438 RTSP/1.0\r\n" +
			"CSeq: 3\r\n" +
			"Content-Length: 12\r\n" +
			"Content-Type: application/sdp\r\n" +
			"\r\n" +
			"v=0\r\no=- 0 0\r\n"),
		Request{
			Method: Announce,
			URL:    "rtsp://192.168.1.2/3413821438",
			Proto:  ProtocolRTSP10,
			Header: Header{
				"CSeq":           HeaderValue{"3"},
				"Content-Length": HeaderValue{"12"},
				"Content-Type":   HeaderValue{"application/sdp"},
			},
			Body: []byte("v=0\r\no=- 0 0"),
		},
	},
	{
		"pair-setup",
		[]byte("POST /pair-setup HTTP/1.1\r\n" +
			"CSeq: 0\r\n" +
			"Content-Length: 4\r\n" +
			"Content-Type: application/octet-stream\r\n" +
			"\r\n" +
			"\x01\x02\x03\x04"),
		Request{
			Method: Post,
			URL:    "/pair-setup",
			Proto:  ProtocolHTTP11,
			Header: Header{
				"CSeq":           HeaderValue{"0"},
				"Content-Length": HeaderValue{"4"},
				"Content-Type":   HeaderValue{"application/octet-stream"},
			},
			Body: []byte{1, 2, 3, 4},
		},
	},
}

func TestRequestUnmarshal(t *testing.T) {
	for _, ca := range casesRequest {
		t.Run(ca.name, func(t *testing.T) {
			var req Request
			err := req.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.NoError(t, err)
			require.Equal(t, ca.req, req)
		})
	}
}

func TestRequestMarshal(t *testing.T) {
	for _, ca := range casesRequest {
		t.Run(ca.name, func(t *testing.T) {
			buf, err := ca.req.Marshal()
			require.NoError(t, err)

			var req Request
			err = req.Unmarshal(bufio.NewReader(bytes.NewBuffer(buf)))
			require.NoError(t, err)
			require.Equal(t, ca.req, req)
		})
	}
}

func TestRequestUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		byts []byte
		err  string
	}{
		{
			"empty method",
			[]byte(" "),
			"empty method",
		},
		{
			"empty URL",
			[]byte("GET  "),
			"empty URL",
		},
		{
			"invalid protocol",
			[]byte("GET * RTSP/2.0\r"),
			"expected 'RTSP/1.0' or 'HTTP/1.1', got 'RTSP/2.0'",
		},
		{
			"invalid content-length",
			[]byte("GET * RTSP/1.0\r\nContent-Length: aaa\r\n\r\n"),
			"invalid Content-Length",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var req Request
			err := req.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.EqualError(t, err, ca.err)
		})
	}
}
