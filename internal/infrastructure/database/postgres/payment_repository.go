package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/domain/payment"
	"github.com/khanxayitrp/loan-system-sub000/internal/infrastructure/monitoring"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

const transactionColumns = `id, application_id, schedule_id, amount_paid, transaction_type,
        payment_channel, payment_method, proof_url, paid_at, recorded_by, remarks, created_at`

type PaymentRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPaymentRepository(db DBPool, logger *slog.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, logger: logger.With("component", "PaymentRepository")}
}

var _ payment.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *PaymentRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *PaymentRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func scanTransaction(row pgx.Row, t *payment.Transaction) error {
	return row.Scan(
		&t.ID, &t.ApplicationID, &t.ScheduleID, &t.AmountPaid, &t.TransactionType,
		&t.PaymentChannel, &t.PaymentMethod, &t.ProofURL, &t.PaidAt, &t.RecordedBy,
		&t.Remarks, &t.CreatedAt,
	)
}

func (r *PaymentRepository) InsertTransactionInTx(ctx context.Context, tx pgx.Tx, txn *payment.Transaction) (*payment.Transaction, error) {
	sql := `
        INSERT INTO payment_transactions (application_id, schedule_id, amount_paid,
            transaction_type, payment_channel, payment_method, proof_url, paid_at,
            recorded_by, remarks, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        RETURNING ` + transactionColumns

	var created payment.Transaction
	err := scanTransaction(tx.QueryRow(ctx, sql,
		txn.ApplicationID, txn.ScheduleID, txn.AmountPaid,
		txn.TransactionType, txn.PaymentChannel, txn.PaymentMethod, txn.ProofURL,
		txn.PaidAt, txn.RecordedBy, txn.Remarks,
	), &created)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment transaction", "application_id", txn.ApplicationID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Payment transaction created in DB", "transaction_id", created.ID)
	return &created, nil
}

func (r *PaymentRepository) ListTransactionsByApplication(ctx context.Context, applicationID int64) ([]payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
        FROM payment_transactions
        WHERE application_id = $1
        ORDER BY paid_at ASC, id ASC`

	status := "success"
	startTime := time.Now()
	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		monitoring.RecordDBQuery("ListTransactionsByApplication", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query payment transactions", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	transactions := make([]payment.Transaction, 0)
	for rows.Next() {
		var t payment.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment transaction row", "application_id", applicationID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Error iterating payment transaction rows", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	monitoring.RecordDBQuery("ListTransactionsByApplication", status, time.Since(startTime))

	return transactions, nil
}

func (r *PaymentRepository) GetScheduleEntryForUpdate(ctx context.Context, tx pgx.Tx, scheduleID int64) (*application.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + `
        FROM repayment_schedules
        WHERE id = $1
        FOR UPDATE`

	var entry application.ScheduleEntry
	err := tx.QueryRow(ctx, query, scheduleID).Scan(
		&entry.ID, &entry.ApplicationID, &entry.InstallmentNumber, &entry.DueDate,
		&entry.PrincipalAmount, &entry.InterestAmount, &entry.TotalDue, &entry.Discounts,
		&entry.Penalty, &entry.RemainingPrincipal, &entry.PaymentStatus,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "Schedule entry not found for update", "schedule_id", scheduleID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to find/lock schedule entry", "schedule_id", scheduleID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &entry, nil
}

func (r *PaymentRepository) SumPaidForScheduleInTx(ctx context.Context, tx pgx.Tx, scheduleID int64) (decimal.Decimal, error) {
	query := `
        SELECT COALESCE(SUM(amount_paid), 0.00)
        FROM payment_transactions
        WHERE schedule_id = $1 AND transaction_type = 'installment'`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, scheduleID).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to sum payments for schedule entry", "schedule_id", scheduleID, "error", err)
		return decimal.Zero, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return total, nil
}

func (r *PaymentRepository) UpdateScheduleStatusInTx(ctx context.Context, tx pgx.Tx, scheduleID int64, status application.PaymentStatus) error {
	sql := `UPDATE repayment_schedules SET payment_status = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, sql, status, scheduleID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update schedule payment status", "schedule_id", scheduleID, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Schedule payment status update affected zero rows", "schedule_id", scheduleID)
		return fmt.Errorf("%w: schedule payment status update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}

func (r *PaymentRepository) CountEntriesNotPaidInTx(ctx context.Context, tx pgx.Tx, applicationID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM repayment_schedules WHERE application_id = $1 AND payment_status != 'paid'`
	if err := tx.QueryRow(ctx, query, applicationID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count unsettled schedule entries", "application_id", applicationID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return count, nil
}

func (r *PaymentRepository) GetOutstandingBalance(ctx context.Context, applicationID int64) (decimal.Decimal, error) {
	// effective due of not-fully-paid entries minus the installment payments
	// already applied to them
	query := `
        SELECT COALESCE(SUM(s.total_due - s.discounts + s.penalty), 0.00)
             - COALESCE((
                   SELECT SUM(p.amount_paid)
                   FROM payment_transactions p
                   JOIN repayment_schedules sp ON sp.id = p.schedule_id
                   WHERE p.application_id = $1
                     AND p.transaction_type = 'installment'
                     AND sp.payment_status != 'paid'
               ), 0.00)
        FROM repayment_schedules s
        WHERE s.application_id = $1 AND s.payment_status != 'paid'`

	status := "success"
	startTime := time.Now()

	var outstanding decimal.Decimal
	err := r.db.QueryRow(ctx, query, applicationID).Scan(&outstanding)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetOutstandingBalance", status, time.Since(startTime))

	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.ErrorContext(ctx, "Failed to calculate outstanding balance", "application_id", applicationID, "error", err)
			return decimal.Zero, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
	}

	if outstanding.IsNegative() {
		r.logger.WarnContext(ctx, "Calculated outstanding balance is negative, returning 0", "application_id", applicationID, "calculated_value", outstanding.String())
		return decimal.Zero, nil
	}
	return outstanding, nil
}
