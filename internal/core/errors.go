package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrAuthentication: the API rejected the credentials (401/403).
	ErrAuthentication = errors.New("authentication failed")

	// ErrRemoteUnavailable: the API could not be reached or kept failing
	// after retries (network errors, 429, 5xx).
	ErrRemoteUnavailable = errors.New("remote API unavailable")

	// ErrExhaustedPagination: a list query still reported more data after
	// the page bound.
	ErrExhaustedPagination = errors.New("pagination exhausted")

	// ErrNotFound: the resource does not exist (404).
	ErrNotFound = errors.New("not found")
)

// MalformedFilterError describes a syntax error in a filter expression,
// pointing at the offending fragment.
type MalformedFilterError struct {
	Expr     string
	Pos      int
	Fragment string
	Reason   string
}

func (e *MalformedFilterError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("malformed filter at position %d: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("malformed filter at position %d near %q: %s", e.Pos, e.Fragment, e.Reason)
}

// CacheCorruptionError wraps a cache entry that failed to decode. The store
// recovers from these by itself; the type exists so the recovery can be
// logged with the failing key attached.
type CacheCorruptionError struct {
	Key string
	Err error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %q: %v", e.Key, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// ExitCode maps an error to the process exit code contract:
// 0 success, 2 authentication, 3 remote unavailable, 4 malformed filter,
// 5 not found, 1 anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrAuthentication):
		return 2
	case errors.Is(err, ErrRemoteUnavailable), errors.Is(err, ErrExhaustedPagination):
		return 3
	case errors.Is(err, ErrNotFound):
		return 5
	}
	var mf *MalformedFilterError
	if errors.As(err, &mf) {
		return 4
	}
	return 1
}
