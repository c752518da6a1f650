package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/dockd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrMissingConfig)
	assert.Equal(t, "Missing configuration", err.Error())

	err = errFactory.WithData(errors.ErrInvalidArgument, "profile 9")
	assert.Equal(t, "Invalid argument provided: profile 9", err.Error())

	cause := fmt.Errorf("permission denied")
	err = errFactory.Wrap(errors.ErrOperationFailed, cause).WithData("/sys/x")
	assert.Equal(t, "Operation failed: /sys/x: permission denied", err.Error())
	assert.Equal(t, "/sys/x", err.GetData())
	assert.ErrorIs(t, err, cause)

	err = errFactory.New(errors.ErrInternal).WithMessage("custom")
	assert.Equal(t, "custom", err.Error())
	assert.Equal(t, errors.ErrInternal, err.Code())
}

func TestCodeLookup(t *testing.T) {
	errFactory := errors.New()

	inner := errFactory.New(errors.ErrResourceNotFound)
	outer := errFactory.Wrap(errors.ErrOperationFailed, inner)

	assert.Equal(t, errors.ErrOperationFailed, errors.CodeOf(outer))
	assert.True(t, errors.HasCode(outer, errors.ErrResourceNotFound))
	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("context: %w", outer)
	require.True(t, errors.HasCode(wrapped, errors.ErrResourceNotFound))
}

func TestRegisterMessage(t *testing.T) {
	code := errors.ErrorCode("test_registered_code")
	assert.Equal(t, "test_registered_code", errors.GetErrorMessage(code))

	errors.RegisterMessage(code, "Registered message")
	assert.Equal(t, "Registered message", errors.GetErrorMessage(code))
}
