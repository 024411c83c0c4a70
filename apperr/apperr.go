// Package apperr is the uniform application error returned by the user
// repository. Low-level database errors are adapted into one of three kinds
// so callers branch on Kind instead of on driver details.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Skryldev/userstore/db"
)

// Kind classifies a failure.
type Kind int

const (
	// Storage covers connection failures, constraint violations and any
	// other query failure.
	Storage Kind = iota
	// NotFound means the lookup or update target does not exist.
	NotFound
	// Validation means the input was rejected before reaching storage.
	Validation
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	default:
		return "storage"
	}
}

// Error is the application error. Err keeps the lower-level cause for
// errors.Is / errors.As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode is the HTTP status that represents the kind.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NewNotFound(msg string, err error) *Error {
	return &Error{Kind: NotFound, Message: msg, Err: err}
}

func NewStorage(msg string, err error) *Error {
	return &Error{Kind: Storage, Message: msg, Err: err}
}

func NewValidation(msg string, err error) *Error {
	return &Error{Kind: Validation, Message: msg, Err: err}
}

// From adapts err into an *Error. nil stays nil and an *Error passes through
// untouched. db.ErrNotFound becomes NotFound; everything else is Storage.
func From(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if db.IsNotFound(err) {
		return NewNotFound("record not found", err)
	}
	return NewStorage("database error", err)
}

// KindOf reports the kind of err, and false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if !errors.As(err, &ae) {
		return 0, false
	}
	return ae.Kind, true
}

func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == NotFound
}

func IsStorage(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Storage
}

func IsValidation(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Validation
}
