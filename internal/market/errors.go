package market

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider fetch failure for retry decisions.
type ErrorKind string

const (
	// KindConnection is a transport-level failure before a response
	// arrived. Retryable.
	KindConnection ErrorKind = "connection"
	// KindTimeout is an aborted request that exceeded its deadline.
	// Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimit is an HTTP 429. Retryable with increasing backoff.
	KindRateLimit ErrorKind = "rate_limit"
	// KindServer is an HTTP 5xx. Retryable.
	KindServer ErrorKind = "server"
	// KindClient is any other non-success HTTP status. Not retryable;
	// surfaced immediately without consuming attempts.
	KindClient ErrorKind = "client"
)

// FetchError is a classified provider failure.
type FetchError struct {
	Kind   ErrorKind
	Status int // HTTP status when one was received, else 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("market fetch failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("market fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *FetchError) Retryable() bool {
	return e.Kind != KindClient
}

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
