package decoder

import (
	"fmt"
)

// l16 converts big-endian 16-bit PCM into little-endian 16-bit PCM.
type l16 struct {
	out []byte
}

func (c *l16) Decode(in []byte) ([]byte, error) {
	if len(in)%2 != 0 {
		return nil, fmt.Errorf("invalid L16 payload length: %d", len(in))
	}

	if cap(c.out) < len(in) {
		c.out = make([]byte, len(in))
	}
	c.out = c.out[:len(in)]

	for i := 0; i < len(in); i += 2 {
		c.out[i] = in[i+1]
		c.out[i+1] = in[i]
	}

	return c.out, nil
}
