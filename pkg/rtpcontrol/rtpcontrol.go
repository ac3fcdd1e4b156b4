// Package rtpcontrol contains the control and timing packets exchanged
// on the RAOP control and timing channels.
package rtpcontrol

import (
	"encoding/binary"
	"fmt"
)

// PacketType is the type of a control or timing packet.
type PacketType uint8

// packet types.
const (
	PacketTypeTimingRequest  PacketType = 0x52
	PacketTypeTimingResponse PacketType = 0x53
	PacketTypeSync           PacketType = 0x54
	PacketTypeResendRequest  PacketType = 0x55
	PacketTypeRetransmit     PacketType = 0x56
)

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case PacketTypeTimingRequest:
		return "timing request"
	case PacketTypeTimingResponse:
		return "timing response"
	case PacketTypeSync:
		return "sync"
	case PacketTypeResendRequest:
		return "resend request"
	case PacketTypeRetransmit:
		return "retransmit"
	}
	return fmt.Sprintf("unknown (0x%02x)", uint8(t))
}

// Type returns the type of a control or timing packet.
func Type(buf []byte) (PacketType, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("packet too short")
	}
	return PacketType(buf[1] &^ 0x80), nil
}

// Timing is a timing request or response.
type Timing struct {
	Response bool
	Origin   uint64
	Receive  uint64
	Transmit uint64
}

// Unmarshal decodes a Timing.
func (p *Timing) Unmarshal(buf []byte) error {
	if len(buf) < 32 {
		return fmt.Errorf("timing packet too short (%d)", len(buf))
	}

	typ, _ := Type(buf)
	switch typ {
	case PacketTypeTimingRequest:
		p.Response = false
	case PacketTypeTimingResponse:
		p.Response = true
	default:
		return fmt.Errorf("unexpected packet type: %v", typ)
	}

	p.Origin = binary.BigEndian.Uint64(buf[8:])
	p.Receive = binary.BigEndian.Uint64(buf[16:])
	p.Transmit = binary.BigEndian.Uint64(buf[24:])
	return nil
}

// Marshal encodes a Timing.
func (p Timing) Marshal() []byte {
	buf := make([]byte, 32)
	buf[0] = 0x80
	if p.Response {
		buf[1] = 0x80 | byte(PacketTypeTimingResponse)
	} else {
		buf[1] = 0x80 | byte(PacketTypeTimingRequest)
	}
	buf[3] = 0x07
	binary.BigEndian.PutUint64(buf[8:], p.Origin)
	binary.BigEndian.PutUint64(buf[16:], p.Receive)
	binary.BigEndian.PutUint64(buf[24:], p.Transmit)
	return buf
}

// Sync is a time synchronization packet, that binds a RTP timestamp
// to the sender clock.
type Sync struct {
	// RTP timestamp of the frame being played, minus the latency.
	PlayingRTPTime uint32

	// sender time, in NTP format.
	NTPTime uint64

	// RTP timestamp of the next frame.
	RTPTime uint32
}

// Unmarshal decodes a Sync.
func (p *Sync) Unmarshal(buf []byte) error {
	if len(buf) < 20 {
		return fmt.Errorf("sync packet too short (%d)", len(buf))
	}

	typ, _ := Type(buf)
	if typ != PacketTypeSync {
		return fmt.Errorf("unexpected packet type: %v", typ)
	}

	p.PlayingRTPTime = binary.BigEndian.Uint32(buf[4:])
	p.NTPTime = binary.BigEndian.Uint64(buf[8:])
	p.RTPTime = binary.BigEndian.Uint32(buf[16:])
	return nil
}

// Marshal encodes a Sync.
func (p Sync) Marshal() []byte {
	buf := make([]byte, 20)
	buf[0] = 0x80
	buf[1] = 0x80 | byte(PacketTypeSync)
	buf[3] = 0x07
	binary.BigEndian.PutUint32(buf[4:], p.PlayingRTPTime)
	binary.BigEndian.PutUint64(buf[8:], p.NTPTime)
	binary.BigEndian.PutUint32(buf[16:], p.RTPTime)
	return buf
}

// ResendRequest asks the sender to retransmit a range of packets.
type ResendRequest struct {
	SequenceNumber        uint16
	MissingSequenceNumber uint16
	Count                 uint16
}

// Unmarshal decodes a ResendRequest.
func (p *ResendRequest) Unmarshal(buf []byte) error {
	if len(buf) < 8 {
		return fmt.Errorf("resend request too short (%d)", len(buf))
	}

	typ, _ := Type(buf)
	if typ != PacketTypeResendRequest {
		return fmt.Errorf("unexpected packet type: %v", typ)
	}

	p.SequenceNumber = binary.BigEndian.Uint16(buf[2:])
	p.MissingSequenceNumber = binary.BigEndian.Uint16(buf[4:])
	p.Count = binary.BigEndian.Uint16(buf[6:])
	return nil
}

// Marshal encodes a ResendRequest.
func (p ResendRequest) Marshal() []byte {
	buf := make([]byte, 8)
	buf[0] = 0x80
	buf[1] = 0x80 | byte(PacketTypeResendRequest)
	binary.BigEndian.PutUint16(buf[2:], p.SequenceNumber)
	binary.BigEndian.PutUint16(buf[4:], p.MissingSequenceNumber)
	binary.BigEndian.PutUint16(buf[6:], p.Count)
	return buf
}

// Retransmit extracts the audio packet embedded into a retransmit packet.
func Retransmit(buf []byte) ([]byte, error) {
	if len(buf) < 4+12 {
		return nil, fmt.Errorf("retransmit packet too short (%d)", len(buf))
	}

	typ, _ := Type(buf)
	if typ != PacketTypeRetransmit {
		return nil, fmt.Errorf("unexpected packet type: %v", typ)
	}

	return buf[4:], nil
}
