package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrHistoryDisabled is returned by history reads when no history store is wired.
	ErrHistoryDisabled = errors.New("history store is not configured")
	// ErrArchiveDisabled is returned by replay when no archive or replay engine is wired.
	ErrArchiveDisabled = errors.New("result archive is disabled")
	// ErrNoArchive is returned when a history entry has no archived result to replay.
	ErrNoArchive = errors.New("history entry has no archived result")
)

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUnsupported
	KindGeneration
	KindExecution
	KindNotConfigured
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnsupported:
		return "unsupported"
	case KindGeneration:
		return "generation"
	case KindExecution:
		return "execution"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Error carries the user-facing message of a failed relay step. Message keeps the
// wording clients already match on, such as "SQL execution error: ...".
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of a relay error, or 0 for any other error.
func KindOf(err error) Kind {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Kind
	}
	return 0
}
