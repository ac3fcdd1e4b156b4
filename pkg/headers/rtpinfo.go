package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/goraop/pkg/base"
)

// RTPInfo is a RTP-Info header, as sent by RAOP senders with
// RECORD and FLUSH requests.
type RTPInfo struct {
	SequenceNumber *uint16
	RTPTime        *uint32
}

// Unmarshal decodes a RTP-Info header.
func (h *RTPInfo) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	for _, kv := range strings.Split(v[0], ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}

		tmp := strings.SplitN(kv, "=", 2)
		if len(tmp) != 2 {
			return fmt.Errorf("unable to parse key-value (%v)", kv)
		}

		k, v := tmp[0], tmp[1]
		switch k {
		case "seq":
			vi, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return err
			}
			seq := uint16(vi)
			h.SequenceNumber = &seq

		case "rtptime":
			vi, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			rtpTime := uint32(vi)
			h.RTPTime = &rtpTime
		}
	}

	return nil
}

// Marshal encodes a RTP-Info header.
func (h RTPInfo) Marshal() base.HeaderValue {
	var parts []string
	if h.SequenceNumber != nil {
		parts = append(parts, "seq="+strconv.FormatUint(uint64(*h.SequenceNumber), 10))
	}
	if h.RTPTime != nil {
		parts = append(parts, "rtptime="+strconv.FormatUint(uint64(*h.RTPTime), 10))
	}
	return base.HeaderValue{strings.Join(parts, ";")}
}
