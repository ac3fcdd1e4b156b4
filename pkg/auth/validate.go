package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/headers"
)

func md5Hex(in string) string {
	h := md5.New()
	h.Write([]byte(in))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeResponse computes the response of a Digest MD5 authentication.
func ComputeResponse(
	method base.Method,
	uri string,
	user string,
	pass string,
	realm string,
	nonce string,
) string {
	ha1 := md5Hex(user + ":" + realm + ":" + pass)
	ha2 := md5Hex(string(method) + ":" + uri)
	return md5Hex(ha1 + ":" + nonce + ":" + ha2)
}

// Validate validates the Authorization header of a request.
// RAOP senders can use any user name, therefore only the password is checked.
func Validate(
	req *base.Request,
	pass string,
	realm string,
	nonce string,
) error {
	var auth headers.Authorization
	err := auth.Unmarshal(req.Header["Authorization"])
	if err != nil {
		return err
	}

	if auth.Nonce != nonce {
		return fmt.Errorf("wrong nonce")
	}

	if auth.Realm != realm {
		return fmt.Errorf("wrong realm")
	}

	response := ComputeResponse(req.Method, auth.URI, auth.Username, pass, realm, nonce)

	if !strings.EqualFold(auth.Response, response) {
		return fmt.Errorf("authentication failed")
	}

	return nil
}
