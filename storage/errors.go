package storage

import (
	"errors"

	"suiml.io/suiml/errs"
)

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
	ErrNoBackends  = errors.New("storage: no backends configured")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// AsError lifts a storage sentinel into the repository error type so API
// layers can map it to a status code.
func AsError(op string, err error) error {
	if err == nil {
		return nil
	}
	code := "EStorage"
	switch {
	case errors.Is(err, ErrNotFound):
		code = "ENotFound"
	case errors.Is(err, ErrInvalidCID):
		code = "EInvalidCID"
	case errors.Is(err, ErrCIDMismatch), errors.Is(err, ErrImmutable):
		code = "ECIDMismatch"
	}
	return errs.Wrap(errs.KindStorage, code, op, err)
}
