package domain

import "fmt"

// ValidationError marks a malformed LogEvent rejected at the ingestion
// boundary. It is never retried as-is by a transport client.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid log event: %s %s", e.Field, e.Reason)
}

// TransportError marks a failed delivery attempt (network failure,
// timeout, or non-2xx response). Entries remain pending for retry.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the failed attempt should be retried.
// Validation rejections (400, 422) indicate a malformed event that can
// never succeed; everything else is transient, throttling (429)
// included, and the entry stays buffered for the next cycle.
func (e *TransportError) Retryable() bool {
	return e.StatusCode != 400 && e.StatusCode != 422
}

// StorageError marks a file-system failure during append or read. It
// surfaces as a 500 to the ingestion caller and never crashes the
// server process.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ParseError marks a stored line that failed to deserialize during a
// read. Reads skip such lines rather than aborting.
type ParseError struct {
	Path string
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
