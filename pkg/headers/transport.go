package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/goraop/pkg/base"
)

// TransportProtocol is the protocol of a stream.
type TransportProtocol int

// transport protocols.
const (
	TransportProtocolUDP TransportProtocol = iota
	TransportProtocolTCP
)

// String implements fmt.Stringer.
func (p TransportProtocol) String() string {
	if p == TransportProtocolTCP {
		return "TCP"
	}
	return "UDP"
}

// Transport is a RAOP Transport header.
type Transport struct {
	// protocol of the stream
	Protocol TransportProtocol

	// control port of the sender, or of the receiver in responses.
	// Zero when not provided.
	ControlPort int

	// timing port of the sender, or of the receiver in responses.
	// Zero when not provided.
	TimingPort int

	// data port of the receiver, used in responses.
	ServerPort int
}

func parsePort(v string) int {
	tmp, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0
	}
	return int(tmp)
}

// Unmarshal decodes a Transport header.
// Malformed ports are treated as missing.
func (h *Transport) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]

	if strings.HasPrefix(v0, "RTP/AVP/TCP") {
		h.Protocol = TransportProtocolTCP
	} else {
		h.Protocol = TransportProtocolUDP
	}

	for _, kv := range strings.Split(v0, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			continue
		}

		switch k {
		case "control_port":
			h.ControlPort = parsePort(v)

		case "timing_port":
			h.TimingPort = parsePort(v)

		case "server_port":
			h.ServerPort = parsePort(v)
		}
	}

	return nil
}

// Marshal encodes a Transport header, in the form used by responses.
func (h Transport) Marshal() base.HeaderValue {
	if h.Protocol == TransportProtocolTCP {
		return base.HeaderValue{"RTP/AVP/TCP;unicast;interleaved=0-1;mode=record;server_port=" +
			strconv.FormatInt(int64(h.ServerPort), 10)}
	}

	return base.HeaderValue{"RTP/AVP/UDP;unicast;mode=record;" +
		"timing_port=" + strconv.FormatInt(int64(h.TimingPort), 10) + ";" +
		"events;" +
		"control_port=" + strconv.FormatInt(int64(h.ControlPort), 10) + ";" +
		"server_port=" + strconv.FormatInt(int64(h.ServerPort), 10)}
}
