package base

import (
	"bufio"
	"fmt"
	"strconv"
)

// StatusCode is the status code of a RTSP response.
type StatusCode int

// status codes.
const (
	StatusOK                        StatusCode = 200
	StatusBadRequest                StatusCode = 400
	StatusUnauthorized              StatusCode = 401
	StatusForbidden                 StatusCode = 403
	StatusNotFound                  StatusCode = 404
	StatusMethodNotAllowed          StatusCode = 405
	StatusNotAcceptable             StatusCode = 406
	StatusPreconditionFailed        StatusCode = 412
	StatusUnsupportedMediaType      StatusCode = 415
	StatusParameterNotUnderstood    StatusCode = 451
	StatusSessionNotFound           StatusCode = 454
	StatusMethodNotValidInThisState StatusCode = 455
	StatusUnsupportedTransport      StatusCode = 461
	StatusInternalServerError       StatusCode = 500
	StatusNotImplemented            StatusCode = 501
	StatusServiceUnavailable        StatusCode = 503
)

// StatusMessages contains the status messages associated with each status code.
var StatusMessages = map[StatusCode]string{
	StatusOK:                        "OK",
	StatusBadRequest:                "Bad Request",
	StatusUnauthorized:              "Unauthorized",
	StatusForbidden:                 "Forbidden",
	StatusNotFound:                  "Not Found",
	StatusMethodNotAllowed:          "Method Not Allowed",
	StatusNotAcceptable:             "Not Acceptable",
	StatusPreconditionFailed:        "Precondition Failed",
	StatusUnsupportedMediaType:      "Unsupported Media Type",
	StatusParameterNotUnderstood:    "Parameter Not Understood",
	StatusSessionNotFound:           "Session Not Found",
	StatusMethodNotValidInThisState: "Method Not Valid In This State",
	StatusUnsupportedTransport:      "Unsupported Transport",
	StatusInternalServerError:       "Internal Server Error",
	StatusNotImplemented:            "Not Implemented",
	StatusServiceUnavailable:        "Service Unavailable",
}

// Response is a RTSP response.
type Response struct {
	// protocol version. It defaults to RTSP/1.0.
	Proto string

	// numeric status code
	StatusCode StatusCode

	// status message
	StatusMessage string

	// map of header values
	Header Header

	// optional body
	Body []byte
}

func (res Response) proto() string {
	if res.Proto == "" {
		return ProtocolRTSP10
	}
	return res.Proto
}

// Unmarshal reads a response.
func (res *Response) Unmarshal(br *bufio.Reader) error {
	byts, err := readBytesLimited(br, ' ', 255)
	if err != nil {
		return err
	}
	proto := string(byts[:len(byts)-1])

	if proto != ProtocolRTSP10 && proto != ProtocolHTTP11 {
		return fmt.Errorf("expected '%s' or '%s', got '%s'", ProtocolRTSP10, ProtocolHTTP11, proto)
	}
	res.Proto = proto

	byts, err = readBytesLimited(br, ' ', 4)
	if err != nil {
		return err
	}
	statusCodeStr := string(byts[:len(byts)-1])

	statusCode64, err := strconv.ParseInt(statusCodeStr, 10, 32)
	if err != nil {
		return fmt.Errorf("unable to parse status code")
	}
	res.StatusCode = StatusCode(statusCode64)

	byts, err = readBytesLimited(br, '\r', 255)
	if err != nil {
		return err
	}
	res.StatusMessage = string(byts[:len(byts)-1])

	if len(res.StatusMessage) == 0 {
		return fmt.Errorf("empty status message")
	}

	err = readByteEqual(br, '\n')
	if err != nil {
		return err
	}

	err = res.Header.unmarshal(br)
	if err != nil {
		return err
	}

	err = (*body)(&res.Body).unmarshal(res.Header, br)
	if err != nil {
		return err
	}

	return nil
}

func (res *Response) fillStatusMessage() {
	if res.StatusMessage == "" {
		if status, ok := StatusMessages[res.StatusCode]; ok {
			res.StatusMessage = status
		}
	}
}

// MarshalSize returns the size of a Response.
func (res Response) MarshalSize() int {
	res.fillStatusMessage()

	n := len(res.proto() + " " + strconv.FormatInt(int64(res.StatusCode), 10) + " " + res.StatusMessage + "\r\n")

	if len(res.Body) != 0 {
		if res.Header == nil {
			res.Header = make(Header)
		}
		res.Header["Content-Length"] = HeaderValue{strconv.FormatInt(int64(len(res.Body)), 10)}
	}

	n += res.Header.marshalSize()
	n += body(res.Body).marshalSize()

	return n
}

// MarshalTo writes a Response.
func (res Response) MarshalTo(buf []byte) (int, error) {
	res.fillStatusMessage()

	pos := copy(buf, res.proto()+" "+strconv.FormatInt(int64(res.StatusCode), 10)+" "+res.StatusMessage+"\r\n")

	if len(res.Body) != 0 {
		if res.Header == nil {
			res.Header = make(Header)
		}
		res.Header["Content-Length"] = HeaderValue{strconv.FormatInt(int64(len(res.Body)), 10)}
	}

	pos += res.Header.marshalTo(buf[pos:])
	pos += body(res.Body).marshalTo(buf[pos:])

	return pos, nil
}

// Marshal writes a Response.
func (res Response) Marshal() ([]byte, error) {
	buf := make([]byte, res.MarshalSize())
	_, err := res.MarshalTo(buf)
	return buf, err
}

// String implements fmt.Stringer.
func (res Response) String() string {
	buf, _ := res.Marshal()
	return string(buf)
}
