// Package base contains the primitives of the RTSP protocol used by RAOP.
package base

import (
	"bufio"
	"fmt"
	"strconv"
)

const (
	// ProtocolRTSP10 is the RTSP protocol version.
	ProtocolRTSP10 = "RTSP/1.0"

	// ProtocolHTTP11 is the HTTP protocol version, used by some
	// senders for pairing and FairPlay requests.
	ProtocolHTTP11 = "HTTP/1.1"

	requestMaxMethodLength   = 64
	requestMaxURLLength      = 2048
	requestMaxProtocolLength = 64
)

// Method is the method of a RTSP request.
type Method string

// methods.
const (
	Announce     Method = "ANNOUNCE"
	Flush        Method = "FLUSH"
	GetParameter Method = "GET_PARAMETER"
	Options      Method = "OPTIONS"
	Pause        Method = "PAUSE"
	Post         Method = "POST"
	Record       Method = "RECORD"
	Setup        Method = "SETUP"
	SetParameter Method = "SET_PARAMETER"
	Teardown     Method = "TEARDOWN"
)

// Request is a RTSP request.
type Request struct {
	// request method
	Method Method

	// request target. It can be an absolute URL, a path or '*'.
	URL string

	// protocol version. It defaults to RTSP/1.0.
	Proto string

	// map of header values
	Header Header

	// optional body
	Body []byte
}

func (req Request) proto() string {
	if req.Proto == "" {
		return ProtocolRTSP10
	}
	return req.Proto
}

// Unmarshal reads a request.
func (req *Request) Unmarshal(br *bufio.Reader) error {
	byts, err := readBytesLimited(br, ' ', requestMaxMethodLength)
	if err != nil {
		return err
	}
	req.Method = Method(byts[:len(byts)-1])

	if req.Method == "" {
		return fmt.Errorf("empty method")
	}

	byts, err = readBytesLimited(br, ' ', requestMaxURLLength)
	if err != nil {
		return err
	}
	req.URL = string(byts[:len(byts)-1])

	if req.URL == "" {
		return fmt.Errorf("empty URL")
	}

	byts, err = readBytesLimited(br, '\r', requestMaxProtocolLength)
	if err != nil {
		return err
	}
	proto := string(byts[:len(byts)-1])

	if proto != ProtocolRTSP10 && proto != ProtocolHTTP11 {
		return fmt.Errorf("expected '%s' or '%s', got '%s'", ProtocolRTSP10, ProtocolHTTP11, proto)
	}
	req.Proto = proto

	err = readByteEqual(br, '\n')
	if err != nil {
		return err
	}

	err = req.Header.unmarshal(br)
	if err != nil {
		return err
	}

	err = (*body)(&req.Body).unmarshal(req.Header, br)
	if err != nil {
		return err
	}

	return nil
}

// MarshalSize returns the size of a Request.
func (req Request) MarshalSize() int {
	n := len(string(req.Method) + " " + req.URL + " " + req.proto() + "\r\n")

	if len(req.Body) != 0 {
		if req.Header == nil {
			req.Header = make(Header)
		}
		req.Header["Content-Length"] = HeaderValue{strconv.FormatInt(int64(len(req.Body)), 10)}
	}

	n += req.Header.marshalSize()
	n += body(req.Body).marshalSize()

	return n
}

// MarshalTo writes a Request.
func (req Request) MarshalTo(buf []byte) (int, error) {
	pos := copy(buf, string(req.Method)+" "+req.URL+" "+req.proto()+"\r\n")

	if len(req.Body) != 0 {
		if req.Header == nil {
			req.Header = make(Header)
		}
		req.Header["Content-Length"] = HeaderValue{strconv.FormatInt(int64(len(req.Body)), 10)}
	}

	pos += req.Header.marshalTo(buf[pos:])
	pos += body(req.Body).marshalTo(buf[pos:])

	return pos, nil
}

// Marshal writes a Request.
func (req Request) Marshal() ([]byte, error) {
	buf := make([]byte, req.MarshalSize())
	_, err := req.MarshalTo(buf)
	return buf, err
}

// String implements fmt.Stringer.
func (req Request) String() string {
	buf, _ := req.Marshal()
	return string(buf)
}
