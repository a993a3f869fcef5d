package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

func TestNewCustomer(t *testing.T) {
	c, err := NewCustomer("  Jane Borrower ", " 555-0199 ", " 12 Elm St ")
	require.NoError(t, err)
	assert.Equal(t, "Jane Borrower", c.Name)
	assert.Equal(t, "555-0199", c.Phone)
	assert.Equal(t, "12 Elm St", c.Address)
	assert.True(t, c.Active)
}

func TestNewCustomerRequiresName(t *testing.T) {
	_, err := NewCustomer("", "555-0199", "12 Elm St")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = NewCustomer("   ", "", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
