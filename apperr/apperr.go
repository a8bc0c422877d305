// Package apperr defines the small set of typed errors handlers answer with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"artisanat/models"
	"artisanat/storage"
)

type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeBadRequest      Code = "bad_request"
	CodeValidation      Code = "validation_failed"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodeConflict        Code = "conflict"
	CodeGone            Code = "gone"
	CodeTooManyRequests Code = "too_many_requests"
	CodeInternal        Code = "internal"
)

type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"error"`
	Status  int               `json:"-"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Status: status}
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, msg)
}

func BadRequest(msg string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, msg)
}

// Validation reports per-field problems. fields maps a request field to its
// error message.
func Validation(fields map[string]string) *Error {
	e := New(http.StatusBadRequest, CodeValidation, "validation failed")
	e.Fields = fields
	return e
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, msg)
}

func Forbidden(msg string) *Error {
	return New(http.StatusForbidden, CodeForbidden, msg)
}

func Conflict(msg string) *Error {
	return New(http.StatusConflict, CodeConflict, msg)
}

func Gone(msg string) *Error {
	return New(http.StatusGone, CodeGone, msg)
}

func TooManyRequests() *Error {
	return New(http.StatusTooManyRequests, CodeTooManyRequests, "too many requests")
}

func Internal(err error) *Error {
	e := New(http.StatusInternalServerError, CodeInternal, "internal server error")
	e.Err = err
	return e
}

// From maps any error to an *Error. Storage sentinels and order workflow
// errors get their natural status; everything else is internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var se *storage.StockError
	if errors.As(err, &se) {
		e := Conflict(se.Error())
		e.Fields = make(map[string]string, len(se.Shortages))
		for _, s := range se.Shortages {
			e.Fields[s.Name] = s.String()
		}
		e.Err = err
		return e
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: "not found", Status: http.StatusNotFound, Err: err}
	case errors.Is(err, storage.ErrConflict):
		return &Error{Code: CodeConflict, Message: "already exists", Status: http.StatusConflict, Err: err}
	case errors.Is(err, storage.ErrInsufficientStock):
		return &Error{Code: CodeConflict, Message: "insufficient stock", Status: http.StatusConflict, Err: err}
	case errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrSameStatus),
		errors.Is(err, models.ErrForbiddenTransition):
		return &Error{Code: CodeBadRequest, Message: err.Error(), Status: http.StatusBadRequest, Err: err}
	}
	return Internal(err)
}
