package application

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	CreateApplication(ctx context.Context, app *LoanApplication) (*LoanApplication, error)
	CreateApplicationInTx(ctx context.Context, tx pgx.Tx, app *LoanApplication) (*LoanApplication, error)
	GetApplicationByID(ctx context.Context, applicationID int64) (*LoanApplication, error)

	// GetApplicationForUpdate locks the application row for the duration of
	// the enclosing transaction so concurrent transitions serialize.
	GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, applicationID int64) (*LoanApplication, error)
	UpdateApplicationInTx(ctx context.Context, tx pgx.Tx, app *LoanApplication) error
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, applicationID int64, status Status) error

	// ReplaceScheduleInTx deletes any prior entries for the application and
	// inserts the new set, all-or-nothing.
	ReplaceScheduleInTx(ctx context.Context, tx pgx.Tx, applicationID int64, entries []ScheduleEntry) error
	GetScheduleByApplicationID(ctx context.Context, applicationID int64) ([]ScheduleEntry, error)
}
