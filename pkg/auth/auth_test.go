package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/headers"
)

func TestGenerateNonce(t *testing.T) {
	n1, err := GenerateNonce()
	require.NoError(t, err)
	require.Len(t, n1, 32)

	n2, err := GenerateNonce()
	require.NoError(t, err)
	require.NotEqual(t, n1, n2)
}

func TestGenerateWWWAuthenticate(t *testing.T) {
	require.Equal(t, base.HeaderValue{`Digest realm="airplay", nonce="abc"`},
		GenerateWWWAuthenticate("airplay", "abc"))
}

func TestComputeResponse(t *testing.T) {
	// RFC 2617, section 3.5, without qop
	ha1 := md5Hex("Mufasa:testrealm@host.com:Circle Of Life")
	require.Equal(t, "939e7578ed9e3c518a452acee763bce9", ha1)

	require.Equal(t,
		md5Hex(ha1+":dcd98b7102dd2f0e8b11d0f600bfb0c093:"+md5Hex("GET:/dir/index.html")),
		ComputeResponse("GET", "/dir/index.html", "Mufasa", "Circle Of Life",
			"testrealm@host.com", "dcd98b7102dd2f0e8b11d0f600bfb0c093"))
}

func TestValidate(t *testing.T) {
	nonce := "0123456789abcdef0123456789abcdef"
	uri := "rtsp://10.0.0.2/3413821438"

	for _, ca := range []struct {
		name     string
		user     string
		pass     string
		realm    string
		nonce    string
		upper    bool
		valid    bool
		noHeader bool
	}{
		{"valid", "iTunes", "secret", "airplay", nonce, false, true, false},
		{"valid uppercase", "AirPlay", "secret", "airplay", nonce, true, true, false},
		{"wrong password", "iTunes", "wrong", "airplay", nonce, false, false, false},
		{"wrong nonce", "iTunes", "secret", "airplay", "ffff", false, false, false},
		{"wrong realm", "iTunes", "secret", "other", nonce, false, false, false},
		{"missing header", "", "", "", "", false, false, true},
	} {
		t.Run(ca.name, func(t *testing.T) {
			req := &base.Request{
				Method: base.Announce,
				URL:    uri,
				Header: base.Header{},
			}

			if !ca.noHeader {
				response := ComputeResponse(base.Announce, uri, ca.user, ca.pass, ca.realm, ca.nonce)
				if ca.upper {
					response = strings.ToUpper(response)
				}

				req.Header["Authorization"] = headers.Authorization{
					Username: ca.user,
					Realm:    ca.realm,
					Nonce:    ca.nonce,
					URI:      uri,
					Response: response,
				}.Marshal()
			}

			err := Validate(req, "secret", "airplay", nonce)
			if ca.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
