package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("loanPeriod", "must be positive")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "loanPeriod", ve.Field)
	assert.Contains(t, err.Error(), "loanPeriod")
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDatabaseError(cause, "failed to insert application")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))

	var ae *AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "DB_ERROR", ae.Code)
	assert.Contains(t, ae.Error(), "DB_ERROR")
}
