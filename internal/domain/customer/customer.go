package customer

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

// Customer is a referenced identity, not an owned aggregate: the loan core
// only ever creates one as part of origination and reads it back by id.
type Customer struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCustomer(name, phone, address string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "must not be empty")
	}
	return &Customer{
		Name:    name,
		Phone:   strings.TrimSpace(phone),
		Address: strings.TrimSpace(address),
		Active:  true,
	}, nil
}

type Repository interface {
	// CreateCustomerInTx participates in the caller's transaction so customer
	// and application creation commit or roll back together.
	CreateCustomerInTx(ctx context.Context, tx pgx.Tx, c *Customer) (*Customer, error)
	GetCustomerByID(ctx context.Context, customerID int64) (*Customer, error)
}
