package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrNotFound       = errors.New("archive not found")
	ErrTransport      = errors.New("archive transport failure")
	ErrCorruptArchive = errors.New("corrupt archive")
	ErrInvalidRange   = errors.New("invalid date range")
	ErrMixedDataset   = errors.New("dataset mixes kinds or states")
)

// NotFoundError reports that the portal has no archive for the key.
type NotFoundError struct {
	Key ArchiveKey
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive %s not found at %s", e.Key, e.URL)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransportError reports a network or server failure. Callers may retry.
type TransportError struct {
	Key ArchiveKey
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch archive %s: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// CorruptArchiveError reports bytes that cannot be unpacked as an archive.
type CorruptArchiveError struct {
	Err error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive: %v", e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

func (e *CorruptArchiveError) Is(target error) bool { return target == ErrCorruptArchive }

// InvalidRangeError reports a date range whose start falls after its end.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

// KeyError attaches the failing archive key to any pipeline error so the
// caller can report state, kind and year.
type KeyError struct {
	Key ArchiveKey
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// FailureKind classifies an error for logs, metrics and exit summaries.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrCorruptArchive):
		return "corrupt_archive"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// ParseWarning is a non-fatal, row-level parsing issue.
type ParseWarning struct {
	Member string `json:"member,omitempty"`
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (w ParseWarning) String() string {
	loc := fmt.Sprintf("row %d", w.Row)
	if w.Member != "" {
		loc = w.Member + " " + loc
	}
	if w.Field != "" {
		return fmt.Sprintf("%s: %s %q: %s", loc, w.Field, w.Value, w.Reason)
	}
	return fmt.Sprintf("%s: %s", loc, w.Reason)
}
