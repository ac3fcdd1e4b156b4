// Package headers contains the RTSP headers used by RAOP.
package headers

import (
	"fmt"
	"strings"

	"github.com/bluenviron/goraop/pkg/base"
)

// Authenticate is a WWW-Authenticate header.
// Only the Digest method is supported.
type Authenticate struct {
	// realm
	Realm string

	// nonce
	Nonce string
}

// Unmarshal decodes a WWW-Authenticate header.
func (h *Authenticate) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]

	i := strings.IndexByte(v0, ' ')
	if i < 0 {
		return fmt.Errorf("unable to split between method and keys (%v)", v0)
	}
	method, v0 := v0[:i], v0[i+1:]

	if method != "Digest" {
		return fmt.Errorf("invalid method (%s)", method)
	}

	kvs, err := keyValParse(v0, ',')
	if err != nil {
		return err
	}

	realm, realmReceived := kvs["realm"]
	nonce, nonceReceived := kvs["nonce"]

	if !realmReceived || !nonceReceived {
		return fmt.Errorf("one or more digest fields are missing")
	}

	h.Realm = realm
	h.Nonce = nonce

	return nil
}

// Marshal encodes a WWW-Authenticate header.
func (h Authenticate) Marshal() base.HeaderValue {
	return base.HeaderValue{"Digest realm=\"" + h.Realm + "\", nonce=\"" + h.Nonce + "\""}
}
