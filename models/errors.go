package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced to the route layer.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindValidation       ErrorKind = "VALIDATION_FAILED"
	KindAuthFailed       ErrorKind = "AUTH_FAILED"
	KindTokenInvalid     ErrorKind = "TOKEN_INVALID"
	KindUnsupportedMedia ErrorKind = "UNSUPPORTED_MEDIA"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks against an AppError's kind.
var (
	ErrNotFound         = &AppError{Kind: KindNotFound}
	ErrForbidden        = &AppError{Kind: KindForbidden}
	ErrValidation       = &AppError{Kind: KindValidation}
	ErrAuthFailed       = &AppError{Kind: KindAuthFailed}
	ErrTokenInvalid     = &AppError{Kind: KindTokenInvalid}
	ErrUnsupportedMedia = &AppError{Kind: KindUnsupportedMedia}
)

// AppError represents a classified application error.
type AppError struct {
	Kind    ErrorKind
	Message string
	// Fields carries per-field messages for form re-rendering.
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Status maps the error kind onto an HTTP status code.
func (e *AppError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindUnsupportedMedia:
		return http.StatusUnprocessableEntity
	case KindAuthFailed, KindTokenInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NewValidationError reports a single field failure.
func NewValidationError(field, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string]string{field: message},
	}
}

func NewAuthFailedError(message string) *AppError {
	return &AppError{Kind: KindAuthFailed, Message: message}
}

func NewTokenInvalidError() *AppError {
	return &AppError{Kind: KindTokenInvalid, Message: "That is an invalid or expired token"}
}

func NewUnsupportedMediaError(err error) *AppError {
	return &AppError{
		Kind:    KindUnsupportedMedia,
		Message: "File does not have an approved extension: jpg, png",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// AsAppError unwraps err into an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}
