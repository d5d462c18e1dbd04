// Package errs defines the error taxonomy used across the esios client.
// Each kind carries enough information for the CLI layer (internal/cli) to decide
// whether to print a short message, a stack-free summary, or exit non-zero
// without logging a full trace.
package errs

import "fmt"

// ConfigError signals a problem with configuration: a missing API key, an
// unparsable config file, or a flag/env value that fails validation.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// AuthError wraps a 401/403 response from the API. It is never retried.
type AuthError struct {
	StatusCode int
	Msg string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Msg)
}

// TransientTransportError wraps a retryable transport failure (5xx, 429,
// network error, timeout). internal/transport classifies and retries these
// with cenkalti/backoff before ever surfacing one to a caller.
type TransientTransportError struct {
	StatusCode int
	Msg string
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("transient transport error (status %d): %s", e.StatusCode, e.Msg)
}

// PermanentTransportError wraps a non-retryable transport failure other
// than auth (4xx other than 429, malformed response body).
type PermanentTransportError struct {
	StatusCode int
	Msg string
}

func (e *PermanentTransportError) Error() string {
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Msg)
}

// CacheCorruptionError records a cache file that failed to decode. It is
// never surfaced to a CLI user: the Store logs it and treats the entry as
// empty.
type CacheCorruptionError struct {
	Path string
	Err error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// PartialRangeError reports that a requested range could only be partially
// satisfied (e.g. an archive provider horizon rejected part of the span).
// The partial result is still usable; this error only documents the gap.
type PartialRangeError struct {
	Requested string
	Served string
}

func (e *PartialRangeError) Error() string {
	return fmt.Sprintf("partial result: requested %s, served %s", e.Requested, e.Served)
}

// UserInputError signals a malformed CLI argument (bad date, unknown
// endpoint, unresolvable geo name).
type UserInputError struct {
	Msg string
}

func (e *UserInputError) Error() string { return e.Msg }
