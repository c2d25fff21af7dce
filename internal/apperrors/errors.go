// Package apperrors defines the stable error kinds every service layer
// returns and the API boundary maps to response codes.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed: handlers switch on it
// to pick a response code, tests assert on it.
type Kind string

const (
	KindInvalidArgument      Kind = "invalid_argument"
	KindInvalidState         Kind = "invalid_state"
	KindAlreadyGraded        Kind = "already_graded"
	KindRetrievalUnavailable Kind = "retrieval_unavailable"
	KindGenerationFailed     Kind = "generation_failed"
	KindInsufficientContent  Kind = "insufficient_content"
	KindIncompleteQuiz       Kind = "incomplete_quiz"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal"
)

// Error carries a kind, the failing operation and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error with a kind and message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap tags an underlying failure with a kind. A nil cause yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
