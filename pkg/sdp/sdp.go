// Package sdp contains a lenient SDP decoder, compatible with RAOP senders.
package sdp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// SessionDescription is a SDP session description.
type SessionDescription psdp.SessionDescription

// Attribute returns the value of an attribute and if it exists
func (s *SessionDescription) Attribute(key string) (string, bool) {
	return (*psdp.SessionDescription)(s).Attribute(key)
}

// Marshal encodes a SessionDescription.
func (s *SessionDescription) Marshal() ([]byte, error) {
	return (*psdp.SessionDescription)(s).Marshal()
}

var (
	errSDPInvalidSyntax       = errors.New("sdp: invalid syntax")
	errSDPInvalidNumericValue = errors.New("sdp: invalid numeric value")
	errSDPInvalidValue        = errors.New("sdp: invalid value")
)

type unmarshalState int

const (
	stateSession unmarshalState = iota
	stateMedia
)

func (s *SessionDescription) unmarshalProtocolVersion(value string) error {
	if value != "0" {
		return fmt.Errorf("invalid version")
	}
	return nil
}

// unmarshalOrigin accepts origins with missing or non-numeric
// session ID and version, that are sent by some senders.
func (s *SessionDescription) unmarshalOrigin(value string) error {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return fmt.Errorf("%w `o=%v`", errSDPInvalidSyntax, value)
	}

	s.Origin.Username = fields[0]
	s.Origin.SessionID, _ = strconv.ParseUint(strings.TrimPrefix(fields[1], "-"), 10, 64)
	s.Origin.SessionVersion, _ = strconv.ParseUint(strings.TrimPrefix(fields[2], "-"), 10, 64)

	if len(fields) >= 6 {
		s.Origin.NetworkType = fields[3]
		s.Origin.AddressType = fields[4]
		s.Origin.UnicastAddress = fields[5]
	}

	return nil
}

// unmarshalConnectionInformation accepts IPv6 addresses
// declared as IP4, that are sent by some senders.
func unmarshalConnectionInformation(value string) (*psdp.ConnectionInformation, error) {
	fields := strings.Fields(strings.Replace(value, "IN IPV4 ", "IN IP4 ", 1))
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w `c=%v`", errSDPInvalidSyntax, value)
	}

	if strings.ToUpper(fields[0]) != "IN" {
		return nil, fmt.Errorf("%w `%v`", errSDPInvalidValue, fields[0])
	}

	if fields[1] != "IP4" && fields[1] != "IP6" {
		return nil, fmt.Errorf("%w `%v`", errSDPInvalidValue, fields[1])
	}

	connAddr := new(psdp.Address)
	if len(fields) > 2 {
		connAddr.Address = fields[2]
	}

	return &psdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: fields[1],
		Address:     connAddr,
	}, nil
}

func unmarshalAttribute(value string) psdp.Attribute {
	if i := strings.IndexByte(value, ':'); i >= 0 {
		return psdp.NewAttribute(value[:i], value[i+1:])
	}
	return psdp.NewPropertyAttribute(value)
}

func (s *SessionDescription) unmarshalMediaDescription(value string) error {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return fmt.Errorf("%w `m=%v`", errSDPInvalidSyntax, value)
	}

	md := &psdp.MediaDescription{}
	md.MediaName.Media = fields[0]

	port, err := strconv.ParseUint(strings.Split(fields[1], "/")[0], 10, 16)
	if err != nil {
		return fmt.Errorf("%w `%v`", errSDPInvalidNumericValue, fields[1])
	}
	md.MediaName.Port.Value = int(port)

	md.MediaName.Protos = strings.Split(fields[2], "/")
	md.MediaName.Formats = fields[3:]

	s.MediaDescriptions = append(s.MediaDescriptions, md)

	return nil
}

func (s *SessionDescription) unmarshalSession(state *unmarshalState, key byte, val string) error {
	switch key {
	case 'v':
		return s.unmarshalProtocolVersion(val)

	case 'o':
		return s.unmarshalOrigin(val)

	case 's':
		s.SessionName = psdp.SessionName(val)

	case 'i':
		info := psdp.Information(val)
		s.SessionInformation = &info

	case 'c':
		var err error
		s.ConnectionInformation, err = unmarshalConnectionInformation(val)
		if err != nil {
			return err
		}

	case 't':
		s.TimeDescriptions = append(s.TimeDescriptions, psdp.TimeDescription{})

	case 'a':
		s.Attributes = append(s.Attributes, unmarshalAttribute(val))

	case 'm':
		*state = stateMedia
		return s.unmarshalMediaDescription(val)
	}

	return nil
}

func (s *SessionDescription) unmarshalMedia(key byte, val string) error {
	md := s.MediaDescriptions[len(s.MediaDescriptions)-1]

	switch key {
	case 'm':
		return s.unmarshalMediaDescription(val)

	case 'i':
		info := psdp.Information(val)
		md.MediaTitle = &info

	case 'c':
		ci, err := unmarshalConnectionInformation(val)
		if err != nil {
			return err
		}
		md.ConnectionInformation = ci

	case 'a':
		md.Attributes = append(md.Attributes, unmarshalAttribute(val))
	}

	return nil
}

// Unmarshal decodes a SessionDescription.
// Unknown line types are skipped.
func (s *SessionDescription) Unmarshal(byts []byte) error {
	state := stateSession

	for _, line := range strings.Split(strings.ReplaceAll(string(byts), "\r", ""), "\n") {
		if line == "" {
			continue
		}

		if len(line) < 2 || line[1] != '=' {
			return fmt.Errorf("invalid line: (%s)", line)
		}

		key := line[0]
		val := strings.TrimSpace(line[2:])

		var err error
		if state == stateSession {
			err = s.unmarshalSession(&state, key, val)
		} else {
			err = s.unmarshalMedia(key, val)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
