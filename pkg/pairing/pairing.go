// Package pairing contains the pair-setup and pair-verify handshakes.
package pairing

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

const (
	keyLength       = 32
	signatureLength = ed25519.SignatureSize
	tagLength       = 4

	verifyStep1Length = tagLength + 2*keyLength
	verifyStep2Length = tagLength + signatureLength

	aesKeySalt = "Pair-Verify-AES-Key"
	aesIVSalt  = "Pair-Verify-AES-IV"
)

// ErrVerifyFailed is returned when the signature of the client cannot be verified.
var ErrVerifyFailed = errors.New("pair-verify signature is invalid")

// Identity is the long-term ed25519 key pair of the receiver.
// It is immutable and can be shared between connections.
type Identity struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewIdentity generates a new Identity.
func NewIdentity() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Identity{pub: pub, priv: priv}, nil
}

// NewIdentityFromSeed creates an Identity from a 32-byte seed.
func NewIdentityFromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// PublicKey returns the public key.
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.pub
}

// Session is the state of the handshake of a single connection.
type Session struct {
	Identity *Identity

	// source of randomness. It defaults to crypto/rand.
	Rand io.Reader

	ourECDH     [keyLength]byte
	theirECDH   [keyLength]byte
	theirEdPub  ed25519.PublicKey
	secret      []byte
	verifyStep1 bool
	verified    bool
}

// Setup handles a pair-setup request, that carries the ed25519 public key of the client,
// and returns the public key of the receiver.
func (s *Session) Setup(body []byte) ([]byte, error) {
	if len(body) != keyLength {
		return nil, fmt.Errorf("invalid pair-setup length: %d", len(body))
	}

	s.theirEdPub = append(ed25519.PublicKey(nil), body...)

	return append([]byte(nil), s.Identity.pub...), nil
}

func deriveCipher(secret []byte) (cipher.Stream, error) {
	key := sha512.Sum512(append([]byte(aesKeySalt), secret...))
	iv := sha512.Sum512(append([]byte(aesIVSalt), secret...))

	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}

	return cipher.NewCTR(block, iv[:16]), nil
}

// VerifyStep1 handles the first pair-verify request, that carries
// the curve25519 and ed25519 public keys of the client.
// It returns the curve25519 public key of the receiver, followed by
// the encrypted signature of the two curve25519 public keys.
func (s *Session) VerifyStep1(body []byte) ([]byte, error) {
	if len(body) != verifyStep1Length {
		return nil, fmt.Errorf("invalid pair-verify length: %d", len(body))
	}

	if body[0] != 1 {
		return nil, fmt.Errorf("unexpected pair-verify tag: %d", body[0])
	}

	r := s.Rand
	if r == nil {
		r = rand.Reader
	}

	var ourPriv [keyLength]byte
	_, err := io.ReadFull(r, ourPriv[:])
	if err != nil {
		return nil, err
	}

	ourPub, err := curve25519.X25519(ourPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	copy(s.ourECDH[:], ourPub)
	copy(s.theirECDH[:], body[tagLength:tagLength+keyLength])
	s.theirEdPub = append(ed25519.PublicKey(nil), body[tagLength+keyLength:]...)

	s.secret, err = curve25519.X25519(ourPriv[:], s.theirECDH[:])
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	msg := make([]byte, 0, 2*keyLength)
	msg = append(msg, s.ourECDH[:]...)
	msg = append(msg, s.theirECDH[:]...)
	sig := ed25519.Sign(s.Identity.priv, msg)

	stream, err := deriveCipher(s.secret)
	if err != nil {
		return nil, err
	}
	stream.XORKeyStream(sig, sig)

	s.verifyStep1 = true
	s.verified = false

	res := make([]byte, 0, keyLength+signatureLength)
	res = append(res, s.ourECDH[:]...)
	res = append(res, sig...)
	return res, nil
}

// VerifyStep2 handles the second pair-verify request, that carries
// the encrypted signature of the two curve25519 public keys made by the client.
// It returns ErrVerifyFailed when the signature is invalid.
func (s *Session) VerifyStep2(body []byte) error {
	if !s.verifyStep1 {
		return fmt.Errorf("pair-verify step 1 not performed")
	}

	if len(body) != verifyStep2Length {
		return fmt.Errorf("invalid pair-verify length: %d", len(body))
	}

	stream, err := deriveCipher(s.secret)
	if err != nil {
		return err
	}

	// skip the key stream used by the signature of step 1
	var discard [signatureLength]byte
	stream.XORKeyStream(discard[:], discard[:])

	sig := make([]byte, signatureLength)
	stream.XORKeyStream(sig, body[tagLength:])

	msg := make([]byte, 0, 2*keyLength)
	msg = append(msg, s.theirECDH[:]...)
	msg = append(msg, s.ourECDH[:]...)

	if !ed25519.Verify(s.theirEdPub, msg, sig) {
		return ErrVerifyFailed
	}

	s.verified = true
	return nil
}

func (s *Session) isVerified() bool {
	return s.verified
}

func (s *Session) sharedSecret() []byte {
	if !s.verified {
		return nil
	}
	return bytes.Clone(s.secret)
}
