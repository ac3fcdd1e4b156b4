// Package liberrors contains errors returned by the library.
package liberrors

import (
	"fmt"
)

// ErrServerTerminated is an error that can be returned by a server.
type ErrServerTerminated struct{}

// Error implements the error interface.
func (e ErrServerTerminated) Error() string {
	return "terminated"
}

// ErrServerMissingCallback is an error that can be returned by a server.
type ErrServerMissingCallback struct {
	Name string
}

// Error implements the error interface.
func (e ErrServerMissingCallback) Error() string {
	return fmt.Sprintf("handler does not implement %s", e.Name)
}

// ErrServerInvalidKey is an error that can be returned by a server.
type ErrServerInvalidKey struct {
	Err error
}

// Error implements the error interface.
func (e ErrServerInvalidKey) Error() string {
	return fmt.Sprintf("invalid private key: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e ErrServerInvalidKey) Unwrap() error {
	return e.Err
}

// ErrServerAuth is an error that can be returned by a server.
type ErrServerAuth struct{}

// Error implements the error interface.
func (e ErrServerAuth) Error() string {
	return "authentication error"
}

// ErrServerCSeqMissing is an error that can be returned by a server.
type ErrServerCSeqMissing struct{}

// Error implements the error interface.
func (e ErrServerCSeqMissing) Error() string {
	return "CSeq is missing"
}

// ErrServerPairVerifyFailed is an error that can be returned by a server.
type ErrServerPairVerifyFailed struct {
	Err error
}

// Error implements the error interface.
func (e ErrServerPairVerifyFailed) Error() string {
	return fmt.Sprintf("pair-verify failed: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e ErrServerPairVerifyFailed) Unwrap() error {
	return e.Err
}

// ErrServerAnnounceKey is an error that can be returned by a server.
type ErrServerAnnounceKey struct {
	Err error
}

// Error implements the error interface.
func (e ErrServerAnnounceKey) Error() string {
	return fmt.Sprintf("unable to obtain the AES key: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e ErrServerAnnounceKey) Unwrap() error {
	return e.Err
}

// ErrServerSessionNotAnnounced is an error that can be returned by a server.
type ErrServerSessionNotAnnounced struct{}

// Error implements the error interface.
func (e ErrServerSessionNotAnnounced) Error() string {
	return "no stream has been announced"
}

// ErrServerFairPlayState is an error that can be returned by a server.
type ErrServerFairPlayState struct {
	Operation string
}

// Error implements the error interface.
func (e ErrServerFairPlayState) Error() string {
	return fmt.Sprintf("FairPlay %s called before setup", e.Operation)
}

// ErrServerUnhandledRequest is an error that can be returned by a server.
type ErrServerUnhandledRequest struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e ErrServerUnhandledRequest) Error() string {
	return fmt.Sprintf("unhandled request: %v %v", e.Method, e.Path)
}

// ErrServerTeardown is an error that can be returned by a server.
type ErrServerTeardown struct {
	Author string
}

// Error implements the error interface.
func (e ErrServerTeardown) Error() string {
	return fmt.Sprintf("teared down by %v", e.Author)
}

// ErrServerMaxClients is an error that can be returned by a server.
type ErrServerMaxClients struct{}

// Error implements the error interface.
func (e ErrServerMaxClients) Error() string {
	return "maximum number of clients reached"
}
