// Package bytecounter contains a net.Conn wrapper that counts transferred bytes.
package bytecounter

import (
	"net"
	"sync/atomic"
)

// Conn is a net.Conn that counts received and sent bytes.
type Conn struct {
	net.Conn

	received atomic.Uint64
	sent     atomic.Uint64
}

// New allocates a Conn.
func New(nconn net.Conn) *Conn {
	return &Conn{
		Conn: nconn,
	}
}

// Read implements net.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.received.Add(uint64(n))
	return n, err
}

// Write implements net.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.sent.Add(uint64(n))
	return n, err
}

// BytesReceived returns the number of bytes received.
func (c *Conn) BytesReceived() uint64 {
	return c.received.Load()
}

// BytesSent returns the number of bytes sent.
func (c *Conn) BytesSent() uint64 {
	return c.sent.Load()
}
