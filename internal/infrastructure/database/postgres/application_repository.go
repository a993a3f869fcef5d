package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/infrastructure/monitoring"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const applicationColumns = `id, contract_number, customer_id, product_id, total_amount,
        interest_rate_at_apply, loan_period, monthly_installment, status,
        requester_id, approver_id, applied_at, approved_at, remarks, created_at, updated_at`

const scheduleColumns = `id, application_id, installment_number, due_date, principal_amount,
        interest_amount, total_due, discounts, penalty, remaining_principal,
        payment_status, created_at, updated_at`

type ApplicationRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewApplicationRepository(db DBPool, logger *slog.Logger) *ApplicationRepository {
	return &ApplicationRepository{db: db, logger: logger.With("component", "ApplicationRepository")}
}

var _ application.Repository = (*ApplicationRepository)(nil)

func (r *ApplicationRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *ApplicationRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *ApplicationRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func scanApplication(row pgx.Row, a *application.LoanApplication) error {
	return row.Scan(
		&a.ID, &a.ContractNumber, &a.CustomerID, &a.ProductID, &a.TotalAmount,
		&a.InterestRate, &a.LoanPeriod, &a.MonthlyInstallment, &a.Status,
		&a.RequesterID, &a.ApproverID, &a.AppliedAt, &a.ApprovedAt, &a.Remarks,
		&a.CreatedAt, &a.UpdatedAt,
	)
}

func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *application.LoanApplication) (*application.LoanApplication, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	created, err := r.CreateApplicationInTx(ctx, tx, app)
	if err != nil {
		return nil, err
	}
	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ApplicationRepository) CreateApplicationInTx(ctx context.Context, tx pgx.Tx, app *application.LoanApplication) (*application.LoanApplication, error) {
	sql := `
        INSERT INTO loan_applications (contract_number, customer_id, product_id, total_amount,
            interest_rate_at_apply, loan_period, monthly_installment, status,
            requester_id, approver_id, applied_at, approved_at, remarks, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
        RETURNING ` + applicationColumns

	var created application.LoanApplication
	err := scanApplication(tx.QueryRow(ctx, sql,
		app.ContractNumber, app.CustomerID, app.ProductID, app.TotalAmount,
		app.InterestRate, app.LoanPeriod, app.MonthlyInstallment, app.Status,
		app.RequesterID, app.ApproverID, app.AppliedAt, app.ApprovedAt, app.Remarks,
	), &created)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan application", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Loan application created in DB", "application_id", created.ID)
	return &created, nil
}

func (r *ApplicationRepository) GetApplicationByID(ctx context.Context, applicationID int64) (*application.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1`

	status := "success"
	startTime := time.Now()

	var a application.LoanApplication
	err := scanApplication(r.db.QueryRow(ctx, query, applicationID), &a)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetApplicationByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan application not found", "application_id", applicationID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan application", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &a, nil
}

func (r *ApplicationRepository) GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, applicationID int64) (*application.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1 FOR UPDATE`

	var a application.LoanApplication
	err := scanApplication(tx.QueryRow(ctx, query, applicationID), &a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan application not found for update", "application_id", applicationID)
			return nil, fmt.Errorf("%w: application with ID %d not found", apperrors.ErrNotFound, applicationID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan application row", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &a, nil
}

func (r *ApplicationRepository) UpdateApplicationInTx(ctx context.Context, tx pgx.Tx, app *application.LoanApplication) error {
	sql := `
        UPDATE loan_applications
        SET total_amount = $1, interest_rate_at_apply = $2, loan_period = $3,
            monthly_installment = $4, status = $5, approver_id = $6,
            applied_at = $7, approved_at = $8, remarks = $9, updated_at = NOW()
        WHERE id = $10`

	cmdTag, err := tx.Exec(ctx, sql,
		app.TotalAmount, app.InterestRate, app.LoanPeriod,
		app.MonthlyInstallment, app.Status, app.ApproverID,
		app.AppliedAt, app.ApprovedAt, app.Remarks, app.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan application", "application_id", app.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan application update affected zero rows", "application_id", app.ID)
		return fmt.Errorf("%w: loan application update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}

func (r *ApplicationRepository) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, applicationID int64, status application.Status) error {
	sql := `UPDATE loan_applications SET status = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, sql, status, applicationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update application status", "application_id", applicationID, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Application status update affected zero rows", "application_id", applicationID, "status", status)
		return fmt.Errorf("%w: application status update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Application status updated in DB", "application_id", applicationID, "new_status", status)
	return nil
}

// ReplaceScheduleInTx wipes any previous generation before inserting the new
// entries, so a regenerated schedule is never mixed with a stale one.
func (r *ApplicationRepository) ReplaceScheduleInTx(ctx context.Context, tx pgx.Tx, applicationID int64, entries []application.ScheduleEntry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM repayment_schedules WHERE application_id = $1`, applicationID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete prior schedule entries", "application_id", applicationID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if len(entries) == 0 {
		return nil
	}

	scheduleSQL := `
        INSERT INTO repayment_schedules (application_id, installment_number, due_date,
            principal_amount, interest_amount, total_due, discounts, penalty,
            remaining_principal, payment_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(scheduleSQL, applicationID, entry.InstallmentNumber, entry.DueDate,
			entry.PrincipalAmount, entry.InterestAmount, entry.TotalDue, entry.Discounts,
			entry.Penalty, entry.RemainingPrincipal, entry.PaymentStatus)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(entries); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing schedule batch insert", "error", err, "entry_index", i, "application_id", applicationID)
			return fmt.Errorf("%w: failed inserting schedule entry %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "application_id", applicationID)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Repayment schedule written in DB", "application_id", applicationID, "num_entries", len(entries))
	return nil
}

func (r *ApplicationRepository) GetScheduleByApplicationID(ctx context.Context, applicationID int64) ([]application.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM repayment_schedules
        WHERE application_id = $1
        ORDER BY installment_number ASC`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query repayment schedule", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	schedule := make([]application.ScheduleEntry, 0)
	for rows.Next() {
		var entry application.ScheduleEntry
		err := rows.Scan(
			&entry.ID, &entry.ApplicationID, &entry.InstallmentNumber, &entry.DueDate,
			&entry.PrincipalAmount, &entry.InterestAmount, &entry.TotalDue, &entry.Discounts,
			&entry.Penalty, &entry.RemainingPrincipal, &entry.PaymentStatus,
			&entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan schedule row", "application_id", applicationID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		schedule = append(schedule, entry)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating schedule rows", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return schedule, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		case "23503":
			contextLogger.Warn("Database foreign key violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.ConstraintName)
		}
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
