package auth

import (
	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/headers"
)

// GenerateWWWAuthenticate generates a WWW-Authenticate header.
func GenerateWWWAuthenticate(realm string, nonce string) base.HeaderValue {
	return headers.Authenticate{
		Realm: realm,
		Nonce: nonce,
	}.Marshal()
}
