// Package rsakey contains the RSA host key of the receiver.
package rsakey

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net"
	"strings"
)

const (
	challengeMinLength = 32
)

// Key is a RSA host key.
// It is immutable and can be shared between connections.
type Key struct {
	priv *rsa.PrivateKey
}

// New decodes a PEM-encoded RSA private key, in PKCS#1 or PKCS#8 format.
func New(byts []byte) (*Key, error) {
	block, _ := pem.Decode(byts)
	if block == nil {
		return nil, fmt.Errorf("PEM block not found")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return &Key{priv: priv}, nil
	}

	tmp, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, err
	}

	var ok bool
	priv, ok = tmp.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not a RSA key")
	}

	return &Key{priv: priv}, nil
}

func fromPrivateKey(priv *rsa.PrivateKey) *Key {
	return &Key{priv: priv}
}

// PublicKey returns the public part of the key.
func (k *Key) PublicKey() *rsa.PublicKey {
	return &k.priv.PublicKey
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	return base64.RawStdEncoding.DecodeString(s)
}

// Sign computes the Apple-Response of an Apple-Challenge.
// The signed message is the decoded challenge, followed by the
// local IP address and the hardware address, zero-padded to 32 bytes.
// The result is base64-encoded without padding.
func (k *Key) Sign(challenge string, localIP net.IP, hwaddr []byte) (string, error) {
	chall, err := decodeBase64(challenge)
	if err != nil {
		return "", fmt.Errorf("invalid challenge: %w", err)
	}

	if ip4 := localIP.To4(); ip4 != nil {
		localIP = ip4
	}

	msg := make([]byte, 0, challengeMinLength+len(localIP)+len(hwaddr))
	msg = append(msg, chall...)
	msg = append(msg, localIP...)
	msg = append(msg, hwaddr...)
	for len(msg) < challengeMinLength {
		msg = append(msg, 0)
	}

	sig, err := rsa.SignPKCS1v15(nil, k.priv, crypto.Hash(0), msg)
	if err != nil {
		return "", err
	}

	return base64.RawStdEncoding.EncodeToString(sig), nil
}

// DecryptAESKey decrypts a base64-encoded AES key encrypted with RSA-OAEP.
func (k *Key) DecryptAESKey(enc string) ([]byte, error) {
	ciphertext, err := decodeBase64(enc)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}

	return rsa.DecryptOAEP(sha1.New(), rand.Reader, k.priv, ciphertext, nil) //nolint:gosec
}
