package outbound

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by cache ports when a key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// ErrPollTimeout is returned when a long-running provider operation does not
// finish within the polling budget.
var ErrPollTimeout = errors.New("operation polling exhausted")

// MissingCredentialError indicates no API key is configured for a provider.
// It is detected before any network call.
type MissingCredentialError struct {
	Provider string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no API key configured for provider %q", e.Provider)
}

// ProviderResponseError indicates a malformed, empty or rejected provider reply.
type ProviderResponseError struct {
	Op         string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProviderResponseError) Error() string {
	msg := e.Op + ": " + e.Reason
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderResponseError) Unwrap() error {
	return e.Err
}

// NetworkError indicates a transport failure talking to a provider.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsMissingCredential reports whether err is a MissingCredentialError.
func IsMissingCredential(err error) bool {
	var target *MissingCredentialError
	return errors.As(err, &target)
}

// IsProviderResponse reports whether err is a ProviderResponseError.
func IsProviderResponse(err error) bool {
	var target *ProviderResponseError
	return errors.As(err, &target)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}
