/*
errors.go - Centralized error types for the analytics core

PURPOSE:
  All error kinds in one place. The request layer maps these to HTTP status
  codes; the core itself never retries or swallows them.

ERROR CATEGORIES:
  1. Input errors    - malformed CSV stream, invalid query range
  2. Transport errors - I/O failure while draining the upload stream
  3. Store errors    - connectivity or query failure in the record store

POLICY:
  Field-level coercion failures are NOT errors: they recover to zero and the
  row survives. Row-level date failures skip the row and are reported in the
  IngestSummary, not here. Stream-level and store-level failures abort the
  whole operation and propagate.

USAGE:
  if errors.Is(err, analytics.ErrStoreUnavailable) { ... 500 ... }
  var rerr *analytics.RangeError
  if errors.As(err, &rerr) { ... 400 ... }
*/
package analytics

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedStream is returned when the input is not well-formed
	// delimited text: a broken CSV structure or a header missing required
	// columns. Nothing is written to the store.
	ErrMalformedStream = errors.New("malformed csv stream")

	// ErrStreamAborted is returned when the input stream fails mid-read.
	// The accumulated buffer is discarded; the store is untouched.
	ErrStreamAborted = errors.New("stream aborted")

	// ErrInvalidRange is returned for zero or inverted query bounds.
	// The engine never falls back to an unfiltered scan.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrStoreUnavailable is returned when the record store cannot be
	// reached or a query fails. The engine does not retry; retry policy
	// belongs to the caller.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ParseError reports a structurally broken input stream with its position.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed csv at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return ErrMalformedStream }

// StreamError reports an I/O failure while reading the input stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return ErrStreamAborted }

// RangeError reports unusable aggregation bounds.
type RangeError struct {
	Range  Range
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range [%s, %s]: %s",
		e.Range.From.Format("2006-01-02"), e.Range.To.Format("2006-01-02"), e.Reason)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// StoreError wraps a store-level failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStoreUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input.
// The request layer maps these to 400, everything else to 500.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedStream) || errors.Is(err, ErrInvalidRange)
}
