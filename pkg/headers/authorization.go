package headers

import (
	"fmt"
	"strings"

	"github.com/bluenviron/goraop/pkg/base"
)

// Authorization is a Digest Authorization header.
type Authorization struct {
	// username
	Username string

	// realm
	Realm string

	// nonce
	Nonce string

	// URI
	URI string

	// response
	Response string
}

// Unmarshal decodes an Authorization header.
func (h *Authorization) Unmarshal(v base.HeaderValue) error {
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

	realmReceived := false
	usernameReceived := false
	nonceReceived := false
	uriReceived := false
	responseReceived := false

	for k, v := range kvs {
		switch k {
		case "realm":
			h.Realm = v
			realmReceived = true

		case "username":
			h.Username = v
			usernameReceived = true

		case "nonce":
			h.Nonce = v
			nonceReceived = true

		case "uri":
			h.URI = v
			uriReceived = true

		case "response":
			h.Response = v
			responseReceived = true
		}
	}

	if !realmReceived || !usernameReceived || !nonceReceived || !uriReceived || !responseReceived {
		return fmt.Errorf("one or more digest fields are missing")
	}

	return nil
}

// Marshal encodes an Authorization header.
func (h Authorization) Marshal() base.HeaderValue {
	return base.HeaderValue{"Digest " +
		"username=\"" + h.Username + "\", realm=\"" + h.Realm + "\", " +
		"nonce=\"" + h.Nonce + "\", uri=\"" + h.URI + "\", response=\"" + h.Response + "\""}
}
