package payment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	InsertTransactionInTx(ctx context.Context, tx pgx.Tx, txn *Transaction) (*Transaction, error)
	ListTransactionsByApplication(ctx context.Context, applicationID int64) ([]Transaction, error)

	// GetScheduleEntryForUpdate locks the entry so concurrent payments against
	// the same installment reconcile serially.
	GetScheduleEntryForUpdate(ctx context.Context, tx pgx.Tx, scheduleID int64) (*application.ScheduleEntry, error)
	SumPaidForScheduleInTx(ctx context.Context, tx pgx.Tx, scheduleID int64) (decimal.Decimal, error)
	UpdateScheduleStatusInTx(ctx context.Context, tx pgx.Tx, scheduleID int64, status application.PaymentStatus) error
	CountEntriesNotPaidInTx(ctx context.Context, tx pgx.Tx, applicationID int64) (int, error)

	// GetOutstandingBalance sums effective due minus installment payments over
	// entries that are not fully paid, floored at zero.
	GetOutstandingBalance(ctx context.Context, applicationID int64) (decimal.Decimal, error)
}
