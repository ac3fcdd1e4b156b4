package decoder

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Config is the codec configuration carried by the fmtp attribute.
type Config struct {
	FrameLength       uint32
	CompatibleVersion uint8
	BitDepth          uint8
	PB                uint8
	MB                uint8
	KB                uint8
	Channels          uint8
	MaxRun            uint16
	MaxFrameBytes     uint32
	AvgBitRate        uint32
	SampleRate        uint32
}

// DefaultAACELDConfig is the configuration used for AAC-ELD streams,
// whose fmtp does not describe the decoded format.
var DefaultAACELDConfig = Config{
	FrameLength:       4096,
	CompatibleVersion: 0,
	BitDepth:          16,
	PB:                40,
	MB:                10,
	KB:                14,
	Channels:          2,
	MaxRun:            255,
	MaxFrameBytes:     0,
	AvgBitRate:        0,
	SampleRate:        44100,
}

// Unmarshal decodes a fmtp value made of 12 space-separated integers:
// payload type, frame length, compatible version, bit depth, pb, mb, kb,
// channels, max run, max frame bytes, average bit rate, sample rate.
func (c *Config) Unmarshal(fmtp string) error {
	fields := strings.Fields(fmtp)
	if len(fields) < 12 {
		return fmt.Errorf("invalid fmtp (%v)", fmtp)
	}

	var vals [12]uint64
	for i := 0; i < 12; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid fmtp field %d (%v)", i, fields[i])
		}
		vals[i] = v
	}

	c.FrameLength = uint32(vals[1])
	c.CompatibleVersion = uint8(vals[2])
	c.BitDepth = uint8(vals[3])
	c.PB = uint8(vals[4])
	c.MB = uint8(vals[5])
	c.KB = uint8(vals[6])
	c.Channels = uint8(vals[7])
	c.MaxRun = uint16(vals[8])
	c.MaxFrameBytes = uint32(vals[9])
	c.AvgBitRate = uint32(vals[10])
	c.SampleRate = uint32(vals[11])

	return nil
}

// Validate checks that the configuration describes a supported format.
func (c Config) Validate() error {
	if c.BitDepth != 16 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("unsupported bit depth %d", c.BitDepth)}
	}
	if c.Channels != 2 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("unsupported channel count %d", c.Channels)}
	}
	if c.FrameLength == 0 {
		return ErrInvalidConfig{Reason: "frame length is zero"}
	}
	return nil
}

// FrameSize returns the size in bytes of a decoded frame.
func (c Config) FrameSize() int {
	return int(c.FrameLength) * int(c.Channels) * int(c.BitDepth) / 8
}

// DecoderInfo returns the 48-byte big-endian decoder info blob
// used to set up ALAC decoders.
func (c Config) DecoderInfo() []byte {
	buf := make([]byte, 48)
	binary.BigEndian.PutUint32(buf[24:], c.FrameLength)
	buf[28] = c.CompatibleVersion
	buf[29] = c.BitDepth
	buf[30] = c.PB
	buf[31] = c.MB
	buf[32] = c.KB
	buf[33] = c.Channels
	binary.BigEndian.PutUint16(buf[34:], c.MaxRun)
	binary.BigEndian.PutUint32(buf[36:], c.MaxFrameBytes)
	binary.BigEndian.PutUint32(buf[40:], c.AvgBitRate)
	binary.BigEndian.PutUint32(buf[44:], c.SampleRate)
	return buf
}

// Fmtp returns the fmtp value of the configuration.
func (c Config) Fmtp(payloadType uint8) string {
	return fmt.Sprintf("%d %d %d %d %d %d %d %d %d %d %d %d",
		payloadType, c.FrameLength, c.CompatibleVersion, c.BitDepth,
		c.PB, c.MB, c.KB, c.Channels, c.MaxRun, c.MaxFrameBytes,
		c.AvgBitRate, c.SampleRate)
}
