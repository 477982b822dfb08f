package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrDisconnected  = errors.New("coordination store unreachable")
	ErrQueueEmpty    = errors.New("task queue is empty")
	ErrNoIndexValue  = errors.New("no index value for date")
	ErrTextTooShort  = errors.New("extracted text below minimum length")
	ErrNoIndexes     = errors.New("no archive indexes available")
	ErrEmptyHistory  = errors.New("historical index table is empty")
	ErrNoResponseRec = errors.New("no response record in archive segment")
	ErrInvalidTask   = errors.New("malformed task payload")
)

// FetchError wraps errors that occur while fetching over HTTP.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while decoding CDX or archive records.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps a failed coordination store operation.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s %s): %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
