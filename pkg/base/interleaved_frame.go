package base

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// InterleavedFrameMagicByte is the first byte of an interleaved frame.
	InterleavedFrameMagicByte = '$'

	// InterleavedFrameAudioChannel is the channel of audio packets.
	InterleavedFrameAudioChannel = 0

	interleavedFrameMaxPayload = 0xFFFF
)

// InterleavedFrame is a frame of the TCP audio stream:
// a magic byte, a channel, a big-endian 16-bit length and the payload.
type InterleavedFrame struct {
	// channel ID
	Channel int

	// payload
	Payload []byte
}

// Unmarshal reads an interleaved frame.
// The payload is always a newly allocated slice.
func (f *InterleavedFrame) Unmarshal(r io.Reader) error {
	var header [4]byte
	_, err := io.ReadFull(r, header[:])
	if err != nil {
		return err
	}

	if header[0] != InterleavedFrameMagicByte {
		return fmt.Errorf("invalid magic byte (0x%.2x)", header[0])
	}

	f.Channel = int(header[1])
	f.Payload = make([]byte, binary.BigEndian.Uint16(header[2:]))

	_, err = io.ReadFull(r, f.Payload)
	return err
}

// Marshal encodes an interleaved frame.
func (f InterleavedFrame) Marshal() ([]byte, error) {
	if f.Channel < 0 || f.Channel > 0xFF {
		return nil, fmt.Errorf("invalid channel (%d)", f.Channel)
	}
	if len(f.Payload) > interleavedFrameMaxPayload {
		return nil, fmt.Errorf("payload too big (%d)", len(f.Payload))
	}

	buf := make([]byte, 4+len(f.Payload))
	buf[0] = InterleavedFrameMagicByte
	buf[1] = byte(f.Channel)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(f.Payload)))
	copy(buf[4:], f.Payload)

	return buf, nil
}
