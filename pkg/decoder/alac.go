package decoder

import (
	"fmt"

	"github.com/maghul/go.alac"
)

type alacCodec struct {
	dec *alac.Alac
}

func newALAC(conf Config, payloadType uint8) (Codec, error) {
	dec, err := alac.NewFromFmtp(conf.Fmtp(payloadType))
	if err != nil {
		return nil, fmt.Errorf("unable to setup ALAC decoder: %w", err)
	}

	return &alacCodec{dec: dec}, nil
}

// Decode decodes an ALAC frame.
// A malformed frame can make the underlying decoder panic; the panic is
// returned as an error.
func (c *alacCodec) Decode(in []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("invalid ALAC frame: %v", r)
		}
	}()

	out = c.dec.Decode(in)
	if len(out) == 0 {
		return nil, fmt.Errorf("unable to decode ALAC frame")
	}
	return out, nil
}
