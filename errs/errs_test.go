package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCodeThroughFmtWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindTransport, CodeRPC, "rpc call failed", cause)
	outer := fmt.Errorf("predict: %w", err)

	assert.True(t, IsKind(outer, KindTransport))
	assert.Equal(t, CodeRPC, CodeOf(outer))
	assert.Equal(t, KindTransport, KindOf(outer))
	assert.ErrorIs(t, outer, cause)
	assert.Equal(t, "predict: rpc call failed: connection reset", outer.Error())
}

func TestWrapNilCauseIsNew(t *testing.T) {
	err := Wrap(KindValidation, CodeInvalidModel, "bad model", nil)
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Nil(t, e.Cause)
	assert.Equal(t, "bad model", err.Error())
}

func TestPlainErrorsHaveNoCode(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, "", CodeOf(err))
	assert.Equal(t, Kind(""), KindOf(err))
	assert.False(t, IsKind(err, KindInternal))
	assert.False(t, HasCode(err, CodeRPC))
}
