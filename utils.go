package goraop

import (
	"encoding/base64"
	"net"
	gourl "net/url"
	"strings"
)

// do not listen on IPv6 when address is 0.0.0.0.
func restrictNetwork(network string, address string) (string, string) {
	host, _, err := net.SplitHostPort(address)
	if err == nil && host == "0.0.0.0" {
		return network + "4", address
	}
	return network, address
}

// senders omit the base64 padding.
func decodeBase64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
}

func clampVolume(v float64) float64 {
	switch {
	case v > volumeMax:
		return volumeMax
	case v < volumeMin:
		return volumeMin
	}
	return v
}

// requestPath returns the path of a request target,
// that can be an absolute URL or a path.
func requestPath(target string) string {
	if strings.Contains(target, "://") {
		u, err := gourl.Parse(target)
		if err != nil {
			return ""
		}
		return u.Path
	}

	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
