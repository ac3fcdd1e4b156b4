// Package decoder contains the RAOP audio decoder, that decrypts
// and decodes the payload of audio packets into PCM.
package decoder

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strconv"
	"strings"
)

const (
	aesKeyLength = 16
	aesIVLength  = 16
)

// ErrInvalidConfig is returned when the stream format is not supported.
type ErrInvalidConfig struct {
	Reason string
}

// Error implements the error interface.
func (e ErrInvalidConfig) Error() string {
	return "invalid configuration: " + e.Reason
}

// ErrUnsupportedCodec is returned when the codec cannot be decoded.
type ErrUnsupportedCodec struct {
	Encoding string
}

// Error implements the error interface.
func (e ErrUnsupportedCodec) Error() string {
	return fmt.Sprintf("unsupported codec '%s'", e.Encoding)
}

// Codec decodes a clear audio frame into 16-bit little-endian interleaved PCM.
type Codec interface {
	Decode(in []byte) ([]byte, error)
}

// CodecFactory allocates a Codec from the decoder info blob and configuration.
type CodecFactory func(info []byte, conf Config) (Codec, error)

// Encoding is the audio encoding of a stream.
type Encoding int

// encodings.
const (
	EncodingALAC Encoding = iota
	EncodingAACELD
	EncodingL16
)

// String implements fmt.Stringer.
func (e Encoding) String() string {
	switch e {
	case EncodingALAC:
		return "ALAC"
	case EncodingAACELD:
		return "AAC-ELD"
	}
	return "L16"
}

type rtpMap struct {
	payloadType uint8
	encoding    string
	clockRate   uint32
	channels    uint8
}

func (m *rtpMap) unmarshal(v string) error {
	parts := strings.SplitN(strings.TrimSpace(v), " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid rtpmap (%v)", v)
	}

	tmp, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid rtpmap payload type (%v)", parts[0])
	}
	m.payloadType = uint8(tmp)

	enc := strings.Split(parts[1], "/")
	m.encoding = enc[0]

	if len(enc) >= 2 {
		tmp, err = strconv.ParseUint(enc[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid rtpmap clock rate (%v)", enc[1])
		}
		m.clockRate = uint32(tmp)
	}

	if len(enc) >= 3 {
		tmp, err = strconv.ParseUint(enc[2], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid rtpmap channels (%v)", enc[2])
		}
		m.channels = uint8(tmp)
	}

	return nil
}

// Decoder decrypts and decodes audio frames.
type Decoder struct {
	// rtpmap attribute of the announced media.
	RTPMap string

	// fmtp attribute of the announced media.
	FMTP string

	// AES key. Decryption is enabled only when both AESKey and AESIV are set.
	AESKey []byte

	// AES IV.
	AESIV []byte

	// factory of AAC-ELD codecs.
	// If nil, AAC-ELD streams are refused.
	NewAACELD CodecFactory

	encoding Encoding
	conf     Config
	codec    Codec
	block    cipher.Block
	iv       []byte
	clear    []byte
}

// Initialize initializes Decoder.
func (d *Decoder) Initialize() error {
	var m rtpMap
	err := m.unmarshal(d.RTPMap)
	if err != nil {
		return err
	}

	switch strings.ToLower(m.encoding) {
	case "applelossless":
		d.encoding = EncodingALAC

		err = d.conf.Unmarshal(d.FMTP)
		if err != nil {
			return err
		}

		err = d.conf.Validate()
		if err != nil {
			return err
		}

		d.codec, err = newALAC(d.conf, m.payloadType)
		if err != nil {
			return err
		}

	case "mpeg4-generic":
		d.encoding = EncodingAACELD
		d.conf = DefaultAACELDConfig

		if d.NewAACELD == nil {
			return ErrUnsupportedCodec{Encoding: m.encoding}
		}

		d.codec, err = d.NewAACELD(d.conf.DecoderInfo(), d.conf)
		if err != nil {
			return err
		}

	case "l16":
		d.encoding = EncodingL16
		d.conf = Config{
			FrameLength: 352,
			BitDepth:    16,
			Channels:    m.channels,
			SampleRate:  m.clockRate,
		}
		if d.conf.Channels == 0 {
			d.conf.Channels = 2
		}
		if d.conf.SampleRate == 0 {
			d.conf.SampleRate = 44100
		}

		err = d.conf.Validate()
		if err != nil {
			return err
		}

		d.codec = &l16{}

	default:
		return ErrUnsupportedCodec{Encoding: m.encoding}
	}

	if d.AESKey != nil && d.AESIV != nil {
		if len(d.AESKey) != aesKeyLength {
			return fmt.Errorf("invalid AES key length: %d", len(d.AESKey))
		}
		if len(d.AESIV) != aesIVLength {
			return fmt.Errorf("invalid AES IV length: %d", len(d.AESIV))
		}

		d.block, err = aes.NewCipher(d.AESKey)
		if err != nil {
			return err
		}
		d.iv = append([]byte(nil), d.AESIV...)
	}

	return nil
}

// Encrypted returns whether frames are decrypted before decoding.
func (d *Decoder) Encrypted() bool {
	return d.block != nil
}

// Encoding returns the stream encoding.
func (d *Decoder) Encoding() Encoding {
	return d.encoding
}

// Config returns the stream configuration.
func (d *Decoder) Config() Config {
	return d.conf
}

// Channels returns the channel count.
func (d *Decoder) Channels() int {
	return int(d.conf.Channels)
}

// BitDepth returns the bit depth.
func (d *Decoder) BitDepth() int {
	return int(d.conf.BitDepth)
}

// SampleRate returns the sample rate.
func (d *Decoder) SampleRate() int {
	return int(d.conf.SampleRate)
}

// FrameLength returns the number of samples per frame.
func (d *Decoder) FrameLength() int {
	return int(d.conf.FrameLength)
}

// FrameSize returns the size in bytes of a decoded frame.
func (d *Decoder) FrameSize() int {
	return d.conf.FrameSize()
}

// Decrypt decrypts the largest multiple-of-16 prefix of a payload with AES-CBC.
// The remaining bytes are copied as they are.
func (d *Decoder) Decrypt(in []byte) []byte {
	d.clear = append(d.clear[:0], in...)

	if d.block == nil {
		return d.clear
	}

	n := (len(in) / aes.BlockSize) * aes.BlockSize
	if n > 0 {
		cipher.NewCBCDecrypter(d.block, d.iv).CryptBlocks(d.clear[:n], d.clear[:n])
	}

	return d.clear
}

// Decode decrypts and decodes a payload.
func (d *Decoder) Decode(in []byte) ([]byte, error) {
	return d.codec.Decode(d.Decrypt(in))
}
