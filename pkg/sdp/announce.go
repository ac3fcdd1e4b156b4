package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// Announce contains the stream parameters of an ANNOUNCE request.
type Announce struct {
	// address of the connection line
	ConnectionAddress string

	// rtpmap attribute
	RTPMap string

	// fmtp attribute
	FMTP string

	// AES key encrypted with RSA, base64-encoded
	RSAAESKey string

	// AES key encrypted with FairPlay, base64-encoded
	FPAESKey string

	// AES IV, base64-encoded
	AESIV string

	// min-latency attribute, in samples.
	// Zero when missing or malformed.
	MinLatency uint32
}

func attribute(md *psdp.MediaDescription, sd *SessionDescription, key string) string {
	if md != nil {
		if v, ok := md.Attribute(key); ok {
			return strings.TrimSpace(v)
		}
	}
	if v, ok := sd.Attribute(key); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Unmarshal decodes the body of an ANNOUNCE request.
func (a *Announce) Unmarshal(byts []byte) error {
	var sd SessionDescription
	err := sd.Unmarshal(byts)
	if err != nil {
		return err
	}

	var md *psdp.MediaDescription
	for _, m := range sd.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			md = m
			break
		}
	}

	if md != nil && md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
		a.ConnectionAddress = md.ConnectionInformation.Address.Address
	} else if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		a.ConnectionAddress = sd.ConnectionInformation.Address.Address
	}

	a.RTPMap = attribute(md, &sd, "rtpmap")
	a.FMTP = attribute(md, &sd, "fmtp")
	a.RSAAESKey = attribute(md, &sd, "rsaaeskey")
	a.FPAESKey = attribute(md, &sd, "fpaeskey")
	a.AESIV = attribute(md, &sd, "aesiv")

	if v := attribute(md, &sd, "min-latency"); v != "" {
		tmp, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			a.MinLatency = uint32(tmp)
		}
	}

	if a.RTPMap == "" {
		return fmt.Errorf("rtpmap attribute is missing")
	}

	return nil
}

// Encrypted returns whether the stream carries an encrypted AES key.
func (a Announce) Encrypted() bool {
	return a.RSAAESKey != "" || a.FPAESKey != ""
}
