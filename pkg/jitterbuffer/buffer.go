// Package jitterbuffer contains a RAOP jitter buffer.
package jitterbuffer

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	// Size is the number of slots of the buffer.
	Size = 32

	// MaxPacketLength is the maximum length of a queued packet.
	MaxPacketLength = 32768

	// ResendAttempts is the maximum number of resend requests per slot.
	ResendAttempts = 3
)

// Decoder decrypts and decodes the payload of a packet.
type Decoder interface {
	Decode(in []byte) ([]byte, error)
	FrameSize() int
}

type entryState int

const (
	entryUnavailable entryState = iota
	entryWaitingResend
	entryAvailable
)

type entry struct {
	state       entryState
	header      rtp.Header
	resendCount int
	audio       []byte
}

// Frame is a decoded frame returned by Dequeue.
type Frame struct {
	// decoded audio. It points into the slot of the frame and is overwritten
	// when a packet is queued into the same slot: consume or copy it before
	// the next Queue.
	Data []byte

	Timestamp      uint32
	SequenceNumber uint16

	// whether the packet was missing and Data is silence.
	Missing bool
}

// Compare compares two sequence numbers, taking wraparound into account.
// It returns a negative value if a comes before b.
func Compare(a uint16, b uint16) int {
	return int(int16(a - b))
}

// Buffer is a fixed ring of slots that reorders incoming packets,
// removes duplicates and fills gaps with silence.
type Buffer struct {
	// decoder of the packet payloads.
	Decoder Decoder

	// logger. It defaults to the standard logrus logger.
	Logger logrus.FieldLogger

	entries   [Size]entry
	frameSize int
	isEmpty   bool
	first     uint16
	last      uint16
}

// Initialize initializes Buffer.
func (b *Buffer) Initialize() error {
	if b.Decoder == nil {
		return fmt.Errorf("decoder not provided")
	}

	if b.Logger == nil {
		b.Logger = logrus.StandardLogger()
	}

	b.frameSize = b.Decoder.FrameSize()
	if b.frameSize <= 0 {
		return fmt.Errorf("invalid frame size: %d", b.frameSize)
	}

	for i := range b.entries {
		b.entries[i].audio = make([]byte, 0, b.frameSize)
	}

	b.isEmpty = true

	return nil
}

// Empty returns whether the buffer has no live window.
func (b *Buffer) Empty() bool {
	return b.isEmpty
}

// First returns the sequence number of the head of the window.
func (b *Buffer) First() uint16 {
	return b.first
}

// Last returns the highest sequence number received in the window.
func (b *Buffer) Last() uint16 {
	return b.last
}

// Queue parses, decodes and stores a packet.
// It returns 1 if the packet has been stored, 0 if it has been dropped
// because it is late or duplicate.
// When useSeqNum is false, the packet sequence number is replaced by
// the head of the window.
func (b *Buffer) Queue(pkt []byte, useSeqNum bool) (int, error) {
	if len(pkt) < 12 || len(pkt) > MaxPacketLength {
		return 0, fmt.Errorf("invalid packet length: %d", len(pkt))
	}

	var header rtp.Header
	n, err := header.Unmarshal(pkt)
	if err != nil {
		return 0, err
	}

	if !useSeqNum {
		header.SequenceNumber = b.first
	}
	seq := header.SequenceNumber

	if !b.isEmpty && Compare(seq, b.first) < 0 {
		return 0, nil
	}

	if Compare(seq, b.first+Size) >= 0 {
		if !b.isEmpty {
			b.Logger.WithFields(logrus.Fields{
				"first": b.first,
				"seq":   seq,
			}).Warn("jitter buffer overrun, flushing")
		}
		b.Flush(int(seq))
	}

	e := &b.entries[seq%Size]
	if e.state == entryAvailable && e.header.SequenceNumber == seq {
		return 0, nil
	}

	audio, err := b.Decoder.Decode(pkt[n:])
	if err != nil {
		return 0, err
	}

	e.header = header
	e.audio = append(e.audio[:0], audio...)
	e.state = entryAvailable
	e.resendCount = 0

	if b.isEmpty {
		b.first = seq
		b.last = seq
		b.isEmpty = false
	}
	if Compare(seq, b.last) > 0 {
		b.last = seq
	}

	return 1, nil
}

// Dequeue returns the frame at the head of the window.
// The returned Data is valid until the next call to Queue.
// When noResend is false and the head is missing, nothing is returned until
// the window is full; then a silent frame is returned instead.
func (b *Buffer) Dequeue(noResend bool) (*Frame, bool) {
	buflen := Compare(b.last, b.first) + 1
	if b.isEmpty || buflen <= 0 {
		return nil, false
	}

	seq := b.first
	e := &b.entries[seq%Size]

	if !noResend && e.state != entryAvailable && buflen < Size {
		return nil, false
	}

	b.first++

	if e.state != entryAvailable {
		e.state = entryUnavailable
		e.resendCount = 0
		b.Logger.WithField("seq", seq).Warn("missing packet, inserting silence")
		return &Frame{
			Data:           make([]byte, b.frameSize),
			SequenceNumber: seq,
			Missing:        true,
		}, true
	}

	e.state = entryUnavailable

	return &Frame{
		Data:           e.audio,
		Timestamp:      e.header.Timestamp,
		SequenceNumber: seq,
	}, true
}

// HandleResends looks for the first run of missing packets inside the window
// and calls cb once with the first missing sequence number and the run length.
// Each slot is requested at most ResendAttempts times, then it is
// marked as waiting and excluded from further requests.
func (b *Buffer) HandleResends(cb func(seq uint16, count uint16)) {
	if b.isEmpty || Compare(b.first, b.last) >= 0 {
		return
	}

	var start uint16
	found := false
	count := uint16(0)

	for seq := b.first; Compare(seq, b.last) < 0; seq++ {
		e := &b.entries[seq%Size]

		if !found {
			if e.state != entryUnavailable {
				continue
			}
			found = true
			start = seq
		}

		if e.state != entryUnavailable {
			break
		}

		if e.resendCount >= ResendAttempts {
			e.state = entryWaitingResend
			break
		}

		e.resendCount++
		count++
	}

	if count > 0 {
		cb(start, count)
	}
}

// Flush empties all slots.
// If next is a valid sequence number, the window is anchored to it,
// otherwise the buffer becomes empty.
func (b *Buffer) Flush(next int) {
	for i := range b.entries {
		b.entries[i].state = entryUnavailable
		b.entries[i].resendCount = 0
		b.entries[i].audio = b.entries[i].audio[:0]
	}

	if next < 0 || next > 0xFFFF {
		b.isEmpty = true
	} else {
		b.isEmpty = false
		b.first = uint16(next)
		b.last = uint16(next) - 1
	}
}
