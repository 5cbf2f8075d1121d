package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorTypes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code string
		is   func(error) bool
	}{
		{NewValidationError("bad", nil), "VALIDATION_ERROR", IsValidationError},
		{NewNotFoundError("missing", nil), "NOT_FOUND", IsNotFoundError},
		{NewUnauthorizedError("no key", nil), "UNAUTHORIZED", IsUnauthorizedError},
		{NewConflictError("busy", nil), "CONFLICT", IsConflictError},
		{NewProviderError(stderrors.New("quota exceeded")), "PROVIDER_ERROR", IsProviderError},
		{NewPartialSequenceError(2, 5, stderrors.New("boom")), "PARTIAL_SEQUENCE", IsPartialSequenceError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.True(t, tc.is(tc.err))
	}
}

func TestProviderErrorKeepsMessageVerbatim(t *testing.T) {
	cause := stderrors.New("API key not valid. Please pass a valid API key.")
	err := NewProviderError(cause)

	assert.Equal(t, cause.Error(), err.Message)
	assert.Equal(t, cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapErrorPreservesType(t *testing.T) {
	inner := NewConflictError("part generation in progress", nil)
	wrapped := WrapError(inner, "generate", ErrorTypeError)

	assert.True(t, IsConflictError(wrapped))
	assert.Contains(t, wrapped.Error(), "generate: part generation in progress")
	assert.Nil(t, WrapError(nil, "x", ErrorTypeError))

	plain := WrapError(stderrors.New("disk full"), "save library", ErrorTypeError)
	assert.Equal(t, ErrorTypeError, TypeOf(plain))
}
