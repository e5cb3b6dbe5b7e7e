// Package errs holds the error kinds shared by every service. Services wrap
// them with context; the HTTP layer maps them to status codes.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrValidation    = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	// ErrUnprocessable marks business conditions the user can act on, such as
	// a game that ran out of questions.
	ErrUnprocessable = errors.New("unprocessable")
)

// Invalid builds a validation error carrying a user-facing message.
func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// New builds an error of the given kind with its own message. errors.Is
// matches both the returned value and kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// NotFoundOr turns gorm.ErrRecordNotFound into ErrNotFound and wraps
// anything else with what.
func NotFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return New(ErrNotFound, what+" not found")
	}
	return fmt.Errorf("loading %s: %w", what, err)
}

// Duplicate reports whether err is a unique constraint violation, either
// translated by GORM or raised by Postgres (SQLSTATE 23505).
func Duplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether err carries a message safe to show to clients.
func Public(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
