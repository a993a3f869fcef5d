package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/customer"
	"github.com/khanxayitrp/loan-system-sub000/internal/infrastructure/monitoring"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger.With("component", "CustomerRepository")}
}

var _ customer.Repository = (*CustomerRepository)(nil)

func (r *CustomerRepository) CreateCustomerInTx(ctx context.Context, tx pgx.Tx, c *customer.Customer) (*customer.Customer, error) {
	sql := `
        INSERT INTO customers (name, phone, address, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, name, phone, address, is_active, created_at, updated_at`

	var created customer.Customer
	err := tx.QueryRow(ctx, sql, c.Name, c.Phone, c.Address, c.Active).Scan(
		&created.ID, &created.Name, &created.Phone, &created.Address,
		&created.Active, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert customer", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Customer created in DB", "customer_id", created.ID)
	return &created, nil
}

func (r *CustomerRepository) GetCustomerByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `SELECT id, name, phone, address, is_active, created_at, updated_at
        FROM customers WHERE id = $1`

	status := "success"
	startTime := time.Now()

	var c customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Address, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetCustomerByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &c, nil
}
