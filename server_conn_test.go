package goraop

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/bluenviron/goraop/pkg/auth"
	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/fairplay"
	"github.com/bluenviron/goraop/pkg/headers"
	"github.com/bluenviron/goraop/pkg/liberrors"
	"github.com/bluenviron/goraop/pkg/rsakey"
)

func requireClosed(t *testing.T, nconn net.Conn) {
	nconn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := nconn.Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)
}

func TestRequestPath(t *testing.T) {
	for _, ca := range []struct {
		in  string
		out string
	}{
		{"/pair-setup", "/pair-setup"},
		{"/fp-setup?x=1", "/fp-setup"},
		{"rtsp://192.168.1.2/pair-verify", "/pair-verify"},
		{"*", "*"},
	} {
		t.Run(ca.in, func(t *testing.T) {
			require.Equal(t, ca.out, requestPath(ca.in))
		})
	}
}

func TestServerConnOptions(t *testing.T) {
	s := newTestServer(t, &testServerHandler{})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	challenge := base64.StdEncoding.EncodeToString([]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	})

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Options,
		URL:    "*",
		Header: base.Header{
			"CSeq":            base.HeaderValue{"3"},
			"Apple-Challenge": base.HeaderValue{challenge},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{"3"}, res.Header["CSeq"])
	require.Equal(t, base.HeaderValue{"AirTunes/130.14"}, res.Header["Server"])
	require.Equal(t, base.HeaderValue{"connected; type=analog"}, res.Header["Apple-Jack-Status"])
	require.Equal(t, base.HeaderValue{
		"ANNOUNCE, SETUP, RECORD, PAUSE, FLUSH, TEARDOWN, OPTIONS, GET_PARAMETER, SET_PARAMETER",
	}, res.Header["Public"])

	key, err := rsakey.New(serverKey)
	require.NoError(t, err)
	expected, err := key.Sign(challenge, net.IPv4(127, 0, 0, 1), testHardwareAddr)
	require.NoError(t, err)
	require.Equal(t, base.HeaderValue{expected}, res.Header["Apple-Response"])
}

func TestServerConnNonceError(t *testing.T) {
	generateNonce = func() (string, error) {
		return "", fmt.Errorf("entropy exhausted")
	}
	defer func() {
		generateNonce = auth.GenerateNonce
	}()

	closeErr := make(chan error, 1)

	s := newTestServer(t, &testServerHandler{
		onConnClose: func(ctx *ServerHandlerOnConnCloseCtx) {
			closeErr <- ctx.Error
		},
	})
	defer s.Close()

	nconn, _ := dialServer(t, s)
	defer nconn.Close()

	requireClosed(t, nconn)
	require.EqualError(t, <-closeErr, "unable to generate nonce: entropy exhausted")
}

func TestServerConnCSeqMissing(t *testing.T) {
	var closeErr error
	done := make(chan struct{})

	s := newTestServer(t, &testServerHandler{
		onConnClose: func(ctx *ServerHandlerOnConnCloseCtx) {
			closeErr = ctx.Error
			close(done)
		},
	})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Options,
		URL:    "*",
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusBadRequest, res.StatusCode)

	requireClosed(t, nconn)
	<-done
	require.Equal(t, liberrors.ErrServerCSeqMissing{}, closeErr)
}

func TestServerConnUnhandledMethod(t *testing.T) {
	s := newTestServer(t, &testServerHandler{})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	res, err := writeReqReadRes(conn, base.Request{
		Method: "DESCRIBE",
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq": base.HeaderValue{"1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusNotImplemented, res.StatusCode)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.Post,
		URL:    "/feedback",
		Header: base.Header{
			"CSeq": base.HeaderValue{"2"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusNotImplemented, res.StatusCode)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.Options,
		URL:    "*",
		Header: base.Header{
			"CSeq": base.HeaderValue{"3"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)
}

func readNonce(t *testing.T, res *base.Response) string {
	require.Equal(t, base.StatusUnauthorized, res.StatusCode)
	_, ok := res.Header["Apple-Response"]
	require.False(t, ok)

	var h headers.Authenticate
	err := h.Unmarshal(res.Header["WWW-Authenticate"])
	require.NoError(t, err)
	require.Equal(t, "airplay", h.Realm)
	require.NotEmpty(t, h.Nonce)
	return h.Nonce
}

func TestServerConnAuth(t *testing.T) {
	s := &Server{
		Handler:      &testServerHandler{},
		RTSPAddress:  "127.0.0.1:0",
		HardwareAddr: testHardwareAddr,
		PrivateKey:   serverKey,
		Password:     "secret",
		Logger:       testLogger(),
	}
	err := s.Start()
	require.NoError(t, err)
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Options,
		URL:    "*",
		Header: base.Header{
			"CSeq": base.HeaderValue{"1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.GetParameter,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq":            base.HeaderValue{"2"},
			"Apple-Challenge": base.HeaderValue{"AQIDBAUGBwgJCgsMDQ4PEA"},
		},
	})
	require.NoError(t, err)
	nonce := readNonce(t, res)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.GetParameter,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq": base.HeaderValue{"3"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, nonce, readNonce(t, res))

	authorization := func(pass string) base.HeaderValue {
		return headers.Authorization{
			Username: "iTunes",
			Realm:    "airplay",
			Nonce:    nonce,
			URI:      "rtsp://127.0.0.1/1",
			Response: auth.ComputeResponse(base.GetParameter, "rtsp://127.0.0.1/1",
				"iTunes", pass, "airplay", nonce),
		}.Marshal()
	}

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.GetParameter,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq":          base.HeaderValue{"4"},
			"Authorization": authorization("wrong"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusUnauthorized, res.StatusCode)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.GetParameter,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq":          base.HeaderValue{"5"},
			"Authorization": authorization("secret"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)

	nconn2, conn2 := dialServer(t, s)
	defer nconn2.Close()

	res, err = writeReqReadRes(conn2, base.Request{
		Method: base.GetParameter,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq": base.HeaderValue{"1"},
		},
	})
	require.NoError(t, err)
	require.NotEqual(t, nonce, readNonce(t, res))
}

func TestServerConnPairing(t *testing.T) {
	s := newTestServer(t, &testServerHandler{})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Post,
		URL:    "/pair-setup",
		Proto:  base.ProtocolHTTP11,
		Header: base.Header{
			"CSeq":         base.HeaderValue{"1"},
			"Content-Type": base.HeaderValue{"application/octet-stream"},
		},
		Body: edPub,
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Equal(t, base.HeaderValue{"application/octet-stream"}, res.Header["Content-Type"])
	require.Equal(t, []byte(s.Identity.PublicKey()), res.Body)

	var priv [32]byte
	_, err = rand.Read(priv[:])
	require.NoError(t, err)
	ecdhPub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)

	body := append([]byte{1, 0, 0, 0}, ecdhPub...)
	body = append(body, edPub...)

	res, err = writeReqReadRes(conn, base.Request{
		Method: base.Post,
		URL:    "/pair-verify",
		Proto:  base.ProtocolHTTP11,
		Header: base.Header{
			"CSeq":         base.HeaderValue{"2"},
			"Content-Type": base.HeaderValue{"application/octet-stream"},
		},
		Body: body,
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.Len(t, res.Body, 32+64)

	// a signature made with another key is refused
	res, err = writeReqReadRes(conn, base.Request{
		Method: base.Post,
		URL:    "/pair-verify",
		Proto:  base.ProtocolHTTP11,
		Header: base.Header{
			"CSeq":         base.HeaderValue{"3"},
			"Content-Type": base.HeaderValue{"application/octet-stream"},
		},
		Body: append([]byte{0, 0, 0, 0}, make([]byte, 64)...),
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusForbidden, res.StatusCode)

	requireClosed(t, nconn)
}

type testOracle struct {
	closed chan struct{}
}

func (o *testOracle) Setup([]byte) ([]byte, error) {
	return bytes.Repeat([]byte{1}, fairplay.SetupResponseLength), nil
}

func (o *testOracle) Handshake([]byte) ([]byte, error) {
	return bytes.Repeat([]byte{2}, fairplay.HandshakeResponseLength), nil
}

func (o *testOracle) Decrypt([]byte) ([]byte, error) {
	return testAESKey, nil
}

func (o *testOracle) Close() error {
	close(o.closed)
	return nil
}

func TestServerConnFairPlay(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		s := newTestServer(t, &testServerHandler{})
		defer s.Close()

		nconn, conn := dialServer(t, s)
		defer nconn.Close()

		res, err := writeReqReadRes(conn, base.Request{
			Method: base.Post,
			URL:    "/fp-setup",
			Header: base.Header{
				"CSeq": base.HeaderValue{"1"},
			},
			Body: make([]byte, fairplay.SetupRequestLength),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusNotImplemented, res.StatusCode)
	})

	t.Run("setup and announce", func(t *testing.T) {
		oracle := &testOracle{closed: make(chan struct{})}
		sessionOpened := make(chan *ServerSession, 1)

		s := &Server{
			Handler: &testServerHandler{
				onSessionOpen: func(ctx *ServerHandlerOnSessionOpenCtx) {
					sessionOpened <- ctx.Session
				},
			},
			RTSPAddress:  "127.0.0.1:0",
			HardwareAddr: testHardwareAddr,
			PrivateKey:   serverKey,
			FairPlay: func() fairplay.Oracle {
				return oracle
			},
			Logger: testLogger(),
		}
		err := s.Start()
		require.NoError(t, err)
		defer s.Close()

		nconn, conn := dialServer(t, s)

		res, err := writeReqReadRes(conn, base.Request{
			Method: base.Post,
			URL:    "/fp-setup",
			Header: base.Header{
				"CSeq": base.HeaderValue{"1"},
			},
			Body: make([]byte, fairplay.HandshakeRequestLength),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusMethodNotValidInThisState, res.StatusCode)

		res, err = writeReqReadRes(conn, base.Request{
			Method: base.Post,
			URL:    "/fp-setup",
			Header: base.Header{
				"CSeq": base.HeaderValue{"2"},
			},
			Body: make([]byte, fairplay.SetupRequestLength),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusOK, res.StatusCode)
		require.Equal(t, base.HeaderValue{"application/octet-stream"}, res.Header["Content-Type"])
		require.Len(t, res.Body, fairplay.SetupResponseLength)

		res, err = writeReqReadRes(conn, base.Request{
			Method: base.Post,
			URL:    "/fp-setup",
			Header: base.Header{
				"CSeq": base.HeaderValue{"3"},
			},
			Body: make([]byte, fairplay.HandshakeRequestLength),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusOK, res.StatusCode)
		require.Len(t, res.Body, fairplay.HandshakeResponseLength)

		sdp := "v=0\r\n" +
			"o=iTunes 1 0 IN IP4 127.0.0.1\r\n" +
			"s=iTunes\r\n" +
			"c=IN IP4 127.0.0.1\r\n" +
			"t=0 0\r\n" +
			"m=audio 0 RTP/AVP 96\r\n" +
			"a=rtpmap:96 L16/44100/2\r\n" +
			"a=fpaeskey:" + base64.StdEncoding.EncodeToString(make([]byte, fairplay.KeyLength)) + "\r\n" +
			"a=aesiv:" + base64.StdEncoding.EncodeToString(testAESIV) + "\r\n"

		res, err = writeReqReadRes(conn, base.Request{
			Method: base.Announce,
			URL:    "rtsp://127.0.0.1/1",
			Header: base.Header{
				"CSeq":         base.HeaderValue{"4"},
				"Content-Type": base.HeaderValue{"application/sdp"},
			},
			Body: []byte(sdp),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusOK, res.StatusCode)

		ss := <-sessionOpened
		require.True(t, ss.Decoder().Encrypted())
		require.Equal(t, ServerSessionStateIdle, ss.State())

		nconn.Close()
		<-oracle.closed
	})
}

func TestServerConnAnnounceInvalidKey(t *testing.T) {
	var closeErr error
	done := make(chan struct{})

	s := newTestServer(t, &testServerHandler{
		onConnClose: func(ctx *ServerHandlerOnConnCloseCtx) {
			closeErr = ctx.Error
			close(done)
		},
	})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	sdp := "v=0\r\n" +
		"o=iTunes 1 0 IN IP4 127.0.0.1\r\n" +
		"s=iTunes\r\n" +
		"t=0 0\r\n" +
		"m=audio 0 RTP/AVP 96\r\n" +
		"a=rtpmap:96 L16/44100/2\r\n" +
		"a=rsaaeskey:" + base64.StdEncoding.EncodeToString([]byte("not a key")) + "\r\n" +
		"a=aesiv:" + base64.StdEncoding.EncodeToString(testAESIV) + "\r\n"

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Announce,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq":         base.HeaderValue{"1"},
			"Content-Type": base.HeaderValue{"application/sdp"},
		},
		Body: []byte(sdp),
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusBadRequest, res.StatusCode)

	requireClosed(t, nconn)
	<-done

	var eerr liberrors.ErrServerAnnounceKey
	require.ErrorAs(t, closeErr, &eerr)
}

func TestServerConnSetupBeforeAnnounce(t *testing.T) {
	s := newTestServer(t, &testServerHandler{})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	res, err := writeReqReadRes(conn, base.Request{
		Method: base.Setup,
		URL:    "rtsp://127.0.0.1/1",
		Header: base.Header{
			"CSeq":      base.HeaderValue{"1"},
			"Transport": base.HeaderValue{"RTP/AVP/UDP;unicast;mode=record;control_port=6001;timing_port=6002"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, base.StatusMethodNotValidInThisState, res.StatusCode)

	requireClosed(t, nconn)
}

func TestServerConnSetupDefaultTransport(t *testing.T) {
	for _, ca := range []struct {
		name      string
		transport base.HeaderValue
	}{
		{"missing", nil},
		{"duplicated", base.HeaderValue{"RTP/AVP/UDP;unicast", "RTP/AVP/TCP;unicast"}},
	} {
		t.Run(ca.name, func(t *testing.T) {
			inits := make(chan struct{}, 1)

			s := newTestServer(t, &testServerHandler{
				onAudioInit: func(*ServerHandlerOnAudioInitCtx) {
					inits <- struct{}{}
				},
			})
			defer s.Close()

			nconn, conn := dialServer(t, s)
			defer nconn.Close()

			res, err := writeReqReadRes(conn, base.Request{
				Method: base.Announce,
				URL:    "rtsp://127.0.0.1/1",
				Header: base.Header{
					"CSeq":         base.HeaderValue{"1"},
					"Content-Type": base.HeaderValue{"application/sdp"},
				},
				Body: announceSDP(t, false),
			})
			require.NoError(t, err)
			require.Equal(t, base.StatusOK, res.StatusCode)

			h := base.Header{
				"CSeq": base.HeaderValue{"2"},
			}
			if ca.transport != nil {
				h["Transport"] = ca.transport
			}

			res, err = writeReqReadRes(conn, base.Request{
				Method: base.Setup,
				URL:    "rtsp://127.0.0.1/1",
				Header: h,
			})
			require.NoError(t, err)
			require.Equal(t, base.StatusOK, res.StatusCode)

			var th headers.Transport
			err = th.Unmarshal(res.Header["Transport"])
			require.NoError(t, err)
			require.Equal(t, headers.TransportProtocolUDP, th.Protocol)
			require.NotZero(t, th.ServerPort)

			<-inits
		})
	}
}

func TestServerConnParameters(t *testing.T) {
	s := newTestServer(t, &testServerHandler{})
	defer s.Close()

	nconn, conn := dialServer(t, s)
	defer nconn.Close()

	cseq := 0

	request := func(method base.Method, contentType string, body string) *base.Response {
		cseq++
		h := base.Header{
			"CSeq": base.HeaderValue{strconv.Itoa(cseq)},
		}
		if contentType != "" {
			h["Content-Type"] = base.HeaderValue{contentType}
		}
		res, err := writeReqReadRes(conn, base.Request{
			Method: method,
			URL:    "rtsp://127.0.0.1/1",
			Header: h,
			Body:   []byte(body),
		})
		require.NoError(t, err)
		require.Equal(t, base.StatusOK, res.StatusCode)
		return res
	}

	res := request(base.GetParameter, "text/parameters", "volume\r\n")
	require.Equal(t, base.HeaderValue{"text/parameters"}, res.Header["Content-Type"])
	require.Equal(t, []byte("volume: 0.000000\r\n"), res.Body)

	res = request(base.Record, "", "")
	require.Equal(t, base.HeaderValue{"11025"}, res.Header["Audio-Latency"])

	request(base.Announce, "application/sdp", string(announceSDP(t, false)))

	request(base.SetParameter, "text/parameters", "volume: -20.5\r\n")
	res = request(base.GetParameter, "text/parameters", "volume\r\n")
	require.Equal(t, []byte("volume: -20.500000\r\n"), res.Body)

	request(base.SetParameter, "text/parameters", "volume: -200\r\n")
	res = request(base.GetParameter, "text/parameters", "volume\r\n")
	require.Equal(t, []byte("volume: -144.000000\r\n"), res.Body)

	res = request(base.Record, "", "")
	require.Equal(t, base.HeaderValue{"22050"}, res.Header["Audio-Latency"])
}
