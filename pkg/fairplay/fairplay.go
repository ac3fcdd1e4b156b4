// Package fairplay contains the FairPlay oracle, that performs the
// FairPlay handshake and key decryption on behalf of the receiver.
package fairplay

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bluenviron/goraop/pkg/liberrors"
)

// DefaultAddress is the address of the loopback oracle.
const DefaultAddress = "127.0.0.1:19999"

const (
	cmdSetup     = 1
	cmdHandshake = 2
	cmdDecrypt   = 3

	maxResponseLength = 1024
)

// payload lengths.
const (
	SetupRequestLength      = 16
	SetupResponseLength     = 142
	HandshakeRequestLength  = 164
	HandshakeResponseLength = 32
	KeyLength               = 72
	DecryptedKeyLength      = 16
)

// Oracle performs FairPlay operations.
type Oracle interface {
	Setup(req []byte) ([]byte, error)
	Handshake(req []byte) ([]byte, error)
	Decrypt(key []byte) ([]byte, error)
	Close() error
}

// Loopback is an Oracle that forwards requests to a local service.
// Each request is a little-endian 32-bit command followed by the payload.
type Loopback struct {
	// address of the service. It defaults to DefaultAddress.
	Address string

	// timeout of requests. It defaults to 5 seconds.
	Timeout time.Duration

	// function used to dial the service.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)

	mutex sync.Mutex
	nconn net.Conn
}

func (l *Loopback) conn() (net.Conn, error) {
	if l.nconn != nil {
		return l.nconn, nil
	}

	address := l.Address
	if address == "" {
		address = DefaultAddress
	}

	dial := l.DialContext
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout())
	defer cancel()

	nconn, err := dial(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	l.nconn = nconn
	return nconn, nil
}

func (l *Loopback) timeout() time.Duration {
	if l.Timeout == 0 {
		return 5 * time.Second
	}
	return l.Timeout
}

func (l *Loopback) query(cmd uint32, data []byte, resLen int) ([]byte, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	nconn, err := l.conn()
	if err != nil {
		return nil, err
	}

	res, err := l.roundTrip(nconn, cmd, data, resLen)
	if err != nil {
		l.nconn.Close()
		l.nconn = nil
		return nil, err
	}

	return res, nil
}

func (l *Loopback) roundTrip(nconn net.Conn, cmd uint32, data []byte, resLen int) ([]byte, error) {
	err := nconn.SetDeadline(time.Now().Add(l.timeout()))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, cmd)
	copy(buf[4:], data)

	_, err = nconn.Write(buf)
	if err != nil {
		return nil, err
	}

	res := make([]byte, resLen)
	_, err = io.ReadFull(nconn, res)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Setup implements Oracle.
func (l *Loopback) Setup(req []byte) ([]byte, error) {
	if len(req) != SetupRequestLength {
		return nil, fmt.Errorf("invalid setup request length: %d", len(req))
	}
	return l.query(cmdSetup, req, SetupResponseLength)
}

// Handshake implements Oracle.
func (l *Loopback) Handshake(req []byte) ([]byte, error) {
	if len(req) != HandshakeRequestLength {
		return nil, fmt.Errorf("invalid handshake request length: %d", len(req))
	}
	return l.query(cmdHandshake, req, HandshakeResponseLength)
}

// Decrypt implements Oracle.
func (l *Loopback) Decrypt(key []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("invalid key length: %d", len(key))
	}
	return l.query(cmdDecrypt, key, DecryptedKeyLength)
}

// Close implements Oracle.
func (l *Loopback) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.nconn == nil {
		return nil
	}

	err := l.nconn.Close()
	l.nconn = nil
	return err
}

// Session wraps an Oracle and enforces the order of operations
// of a single connection: Setup must precede Handshake and Decrypt.
type Session struct {
	Oracle Oracle

	setupDone bool
}

// Setup performs a setup.
func (s *Session) Setup(req []byte) ([]byte, error) {
	res, err := s.Oracle.Setup(req)
	if err != nil {
		return nil, err
	}
	s.setupDone = true
	return res, nil
}

// Handshake performs a handshake.
func (s *Session) Handshake(req []byte) ([]byte, error) {
	if !s.setupDone {
		return nil, liberrors.ErrServerFairPlayState{Operation: "handshake"}
	}
	return s.Oracle.Handshake(req)
}

// Decrypt decrypts an AES key.
func (s *Session) Decrypt(key []byte) ([]byte, error) {
	if !s.setupDone {
		return nil, liberrors.ErrServerFairPlayState{Operation: "decrypt"}
	}
	return s.Oracle.Decrypt(key)
}

// Close closes the oracle.
func (s *Session) Close() error {
	return s.Oracle.Close()
}
