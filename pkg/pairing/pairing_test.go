package pairing

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

type testClient struct {
	ecdhPriv []byte
	ecdhPub  []byte
	edPub    ed25519.PublicKey
	edPriv   ed25519.PrivateKey
}

func newTestClient(t *testing.T) *testClient {
	c := &testClient{
		ecdhPriv: make([]byte, 32),
	}

	_, err := rand.Read(c.ecdhPriv)
	require.NoError(t, err)

	c.ecdhPub, err = curve25519.X25519(c.ecdhPriv, curve25519.Basepoint)
	require.NoError(t, err)

	c.edPub, c.edPriv, err = ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return c
}

func (c *testClient) step1() []byte {
	body := []byte{1, 0, 0, 0}
	body = append(body, c.ecdhPub...)
	body = append(body, c.edPub...)
	return body
}

// step2 checks the response of step 1 and returns the body of step 2.
func (c *testClient) step2(t *testing.T, serverPub ed25519.PublicKey, res []byte, tamper bool) []byte {
	require.Len(t, res, 96)
	serverECDH := res[:32]

	secret, err := curve25519.X25519(c.ecdhPriv, serverECDH)
	require.NoError(t, err)

	stream, err := deriveCipher(secret)
	require.NoError(t, err)

	sig := make([]byte, 64)
	stream.XORKeyStream(sig, res[32:])
	require.True(t, ed25519.Verify(serverPub, append(append([]byte(nil), serverECDH...), c.ecdhPub...), sig))

	ourSig := ed25519.Sign(c.edPriv, append(append([]byte(nil), c.ecdhPub...), serverECDH...))
	if tamper {
		ourSig[0] ^= 0xFF
	}
	stream.XORKeyStream(ourSig, ourSig)

	return append([]byte{0, 0, 0, 0}, ourSig...)
}

func TestSetup(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	s := &Session{Identity: id}

	res, err := s.Setup(make([]byte, 32))
	require.NoError(t, err)
	require.Equal(t, []byte(id.PublicKey()), res)

	_, err = s.Setup(make([]byte, 31))
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	for _, ca := range []string{"valid", "invalid signature"} {
		t.Run(ca, func(t *testing.T) {
			id, err := NewIdentity()
			require.NoError(t, err)

			s := &Session{Identity: id}
			c := newTestClient(t)

			res, err := s.VerifyStep1(c.step1())
			require.NoError(t, err)

			body := c.step2(t, id.PublicKey(), res, ca == "invalid signature")

			err = s.VerifyStep2(body)
			if ca == "valid" {
				require.NoError(t, err)
				require.True(t, s.isVerified())
				require.Len(t, s.sharedSecret(), 32)
			} else {
				require.ErrorIs(t, err, ErrVerifyFailed)
				require.False(t, s.isVerified())
				require.Nil(t, s.sharedSecret())
			}
		})
	}
}

func TestVerifyErrors(t *testing.T) {
	id, err := NewIdentityFromSeed(make([]byte, 32))
	require.NoError(t, err)

	s := &Session{Identity: id}

	err = s.VerifyStep2(make([]byte, 68))
	require.Error(t, err)

	_, err = s.VerifyStep1(make([]byte, 10))
	require.Error(t, err)

	body := newTestClient(t).step1()
	body[0] = 0
	_, err = s.VerifyStep1(body)
	require.Error(t, err)

	_, err = NewIdentityFromSeed(make([]byte, 3))
	require.Error(t, err)
}
