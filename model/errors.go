package model

import (
	"errors"
	"fmt"

	"suiml.io/suiml/errs"
)

type ErrorCode string

// Boundary codes that have no errs counterpart.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrUnavailable    ErrorCode = "UNAVAILABLE"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is the JSON error body returned by the HTTP API.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Kind    string    `json:"kind,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// FromError converts any error into a CodedError, keeping the stable code of
// a structured error.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return &CodedError{Code: ErrorCode(e.Code), Kind: string(e.Kind), Message: err.Error()}
	}
	return &CodedError{Code: ErrInternal, Kind: string(errs.KindInternal), Message: err.Error()}
}
