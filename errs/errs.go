package errs

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/Code rather than matching error strings.
// Error() strings are human-readable and may evolve; use errors.As to
// extract *Error for structured handling.
type Kind string

const (
	KindValidation Kind = "Validation"
	KindEncoding   Kind = "Encoding"
	KindChain      Kind = "Chain"
	KindTransport  Kind = "Transport"
	KindEvent      Kind = "Event"
	KindStorage    Kind = "Storage"
	KindAuth       Kind = "Auth"
	KindInternal   Kind = "Internal"
)

// Stable codes. These name the violated invariant or the failed step.
const (
	CodeEncodingOverflow         = "EncodingOverflow"
	CodeDimensionMismatch        = "EDimensionMismatch"
	CodeMissingPredictionEvent   = "EMissingPredictionEvent"
	CodeInvalidModel             = "EInvalidModel"
	CodeInvalidInput             = "EInvalidInput"
	CodeUnknownEvent             = "EUnknownEvent"
	CodeMalformedEvent           = "EMalformedEvent"
	CodeDuplicatePredictionEvent = "EDuplicatePredictionEvent"
	CodeTransactionFailed        = "ETransactionFailed"
	CodeInsufficientGas          = "EInsufficientGas"
	CodeRPC                      = "ERPC"
	CodeHTTP                     = "EHTTP"
	CodeUnauthorized             = "EUnauthorized"
)

// Error is the repository's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap returns a structured error with cause. A nil cause yields New.
func Wrap(kind Kind, code, msg string, cause error) error {
	if cause == nil {
		return New(kind, code, msg)
	}
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if unknown.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// CodeOf returns the stable Code for a structured error, or "" if unknown.
func CodeOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// HasCode reports whether err is (or wraps) a *Error with the given Code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
