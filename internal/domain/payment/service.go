package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/event"
	"github.com/khanxayitrp/loan-system-sub000/internal/infrastructure/monitoring"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type RecordPaymentInput struct {
	ApplicationID   int64
	ScheduleID      *int64
	Amount          decimal.Decimal
	TransactionType TransactionType
	PaymentChannel  string
	PaymentMethod   string
	ProofURL        string
	PaidAt          time.Time
	RecordedBy      *int64
	Remarks         string
}

type LedgerService interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*Transaction, error)

	OutstandingBalance(ctx context.Context, applicationID int64) (decimal.Decimal, error)

	ListPayments(ctx context.Context, applicationID int64) ([]Transaction, error)
}

type ledgerServiceImpl struct {
	repo    Repository
	appRepo application.Repository
	pub     event.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewLedgerService(repo Repository, appRepo application.Repository, pub event.Publisher, logger *slog.Logger) LedgerService {
	if repo == nil || appRepo == nil {
		panic("ledger repositories cannot be nil")
	}
	return &ledgerServiceImpl{
		repo:    repo,
		appRepo: appRepo,
		pub:     pub,
		logger:  logger.With("component", "LedgerService"),
		now:     time.Now,
	}
}

func (s *ledgerServiceImpl) RecordPayment(ctx context.Context, input RecordPaymentInput) (created *Transaction, err error) {
	s.logger.Info("Recording payment", "applicationID", input.ApplicationID, "amount", input.Amount.String(), "type", input.TransactionType)

	defer func() {
		if err != nil {
			status := "failure_internal"
			switch {
			case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidPaymentAmount):
				status = "failure_validation"
			case errors.Is(err, apperrors.ErrNotFound):
				status = "failure_not_found"
			case errors.Is(err, apperrors.ErrConflict):
				status = "failure_conflict"
			}
			monitoring.RecordPayment(status)
		}
	}()

	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w: amount %s must be greater than zero",
			apperrors.ErrValidation, apperrors.ErrInvalidPaymentAmount, input.Amount.String())
	}

	txn, err := NewTransaction(input.ApplicationID, input.ScheduleID, input.Amount, input.TransactionType, input.PaidAt)
	if err != nil {
		return nil, err
	}
	txn.PaymentChannel = input.PaymentChannel
	txn.PaymentMethod = input.PaymentMethod
	txn.ProofURL = input.ProofURL
	txn.RecordedBy = input.RecordedBy
	txn.Remarks = input.Remarks

	// existence checks happen before any write
	app, err := s.appRepo.GetApplicationByID(ctx, input.ApplicationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: application with ID %d not found", apperrors.ErrNotFound, input.ApplicationID)
		}
		return nil, fmt.Errorf("%w: failed to load application %d: %v", apperrors.ErrInternalServer, input.ApplicationID, err)
	}

	if input.TransactionType == TypeClosing && app.Status.Terminal() {
		return nil, fmt.Errorf("%w: %w: cannot close application in status %q",
			apperrors.ErrConflict, apperrors.ErrTerminalStatus, app.Status)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	var entry *application.ScheduleEntry
	if input.ScheduleID != nil {
		entry, err = s.repo.GetScheduleEntryForUpdate(ctx, tx, *input.ScheduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: schedule entry with ID %d not found", apperrors.ErrNotFound, *input.ScheduleID)
			}
			return nil, fmt.Errorf("%w: failed to lock schedule entry %d: %v", apperrors.ErrInternalServer, *input.ScheduleID, err)
		}
		if entry.ApplicationID != input.ApplicationID {
			return nil, apperrors.NewValidationError("scheduleId",
				fmt.Sprintf("schedule entry %d does not belong to application %d", *input.ScheduleID, input.ApplicationID))
		}
	}

	created, err = s.repo.InsertTransactionInTx(ctx, tx, txn)
	if err != nil {
		s.logger.Error("Failed to insert payment transaction", "applicationID", input.ApplicationID, "error", err)
		return nil, err
	}

	if entry != nil && input.TransactionType == TypeInstallment {
		if err = s.reconcileEntry(ctx, tx, entry); err != nil {
			return nil, err
		}

		notPaid, countErr := s.repo.CountEntriesNotPaidInTx(ctx, tx, input.ApplicationID)
		if countErr != nil {
			err = countErr
			return nil, err
		}
		if notPaid == 0 && !app.Status.Terminal() {
			if err = s.appRepo.UpdateStatusInTx(ctx, tx, app.ID, application.StatusCompleted); err != nil {
				return nil, err
			}
			monitoring.RecordStatusTransition(string(app.Status), string(application.StatusCompleted))
			s.logger.Info("All installments settled, application completed", "applicationID", app.ID)
		}
	}

	if input.TransactionType == TypeClosing {
		// re-read under the row lock so two concurrent closes cannot both win
		locked, lockErr := s.appRepo.GetApplicationForUpdate(ctx, tx, app.ID)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		if locked.Status.Terminal() {
			err = fmt.Errorf("%w: %w: cannot close application in status %q",
				apperrors.ErrConflict, apperrors.ErrTerminalStatus, locked.Status)
			return nil, err
		}
		if err = s.appRepo.UpdateStatusInTx(ctx, tx, app.ID, application.StatusClosedEarly); err != nil {
			return nil, err
		}
		monitoring.RecordStatusTransition(string(locked.Status), string(application.StatusClosedEarly))
		s.logger.Info("Closing payment recorded, application closed early", "applicationID", app.ID)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	monitoring.RecordPayment("success")
	s.logger.Info("Payment recorded", "transactionID", created.ID, "applicationID", created.ApplicationID)

	if s.pub != nil {
		pubErr := s.pub.PublishPaymentRecorded(ctx, event.PaymentRecordedEvent{
			TransactionID:   created.ID,
			ApplicationID:   created.ApplicationID,
			ScheduleID:      created.ScheduleID,
			Amount:          created.AmountPaid.String(),
			TransactionType: string(created.TransactionType),
			Timestamp:       s.now(),
		})
		if pubErr != nil {
			s.logger.Error("Failed to publish payment event", "transactionID", created.ID, "error", pubErr)
		}
	}

	return created, nil
}

// reconcileEntry recomputes the entry's payment status from the cumulative
// installment payments linked to it.
func (s *ledgerServiceImpl) reconcileEntry(ctx context.Context, tx pgx.Tx, entry *application.ScheduleEntry) error {
	paid, err := s.repo.SumPaidForScheduleInTx(ctx, tx, entry.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to sum payments for schedule entry %d: %v", apperrors.ErrInternalServer, entry.ID, err)
	}

	newStatus := application.PaymentStatusUnpaid
	switch {
	case paid.Cmp(entry.EffectiveDue()) >= 0:
		newStatus = application.PaymentStatusPaid
	case paid.IsPositive():
		newStatus = application.PaymentStatusPartial
	}

	if newStatus == entry.PaymentStatus {
		return nil
	}
	if err := s.repo.UpdateScheduleStatusInTx(ctx, tx, entry.ID, newStatus); err != nil {
		return err
	}
	s.logger.Info("Schedule entry reconciled", "scheduleID", entry.ID, "paid", paid.String(), "status", newStatus)
	entry.PaymentStatus = newStatus
	return nil
}

func (s *ledgerServiceImpl) OutstandingBalance(ctx context.Context, applicationID int64) (decimal.Decimal, error) {
	s.logger.Info("Querying outstanding balance", "applicationID", applicationID)

	if _, err := s.appRepo.GetApplicationByID(ctx, applicationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("%w: application with ID %d not found", apperrors.ErrNotFound, applicationID)
		}
		return decimal.Zero, fmt.Errorf("%w: failed to load application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}

	outstanding, err := s.repo.GetOutstandingBalance(ctx, applicationID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to compute outstanding balance for application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}
	if outstanding.IsNegative() {
		s.logger.Warn("Outstanding balance is negative, returning zero", "applicationID", applicationID, "value", outstanding.String())
		return decimal.Zero, nil
	}
	return outstanding, nil
}

func (s *ledgerServiceImpl) ListPayments(ctx context.Context, applicationID int64) ([]Transaction, error) {
	if _, err := s.appRepo.GetApplicationByID(ctx, applicationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: application with ID %d not found", apperrors.ErrNotFound, applicationID)
		}
		return nil, fmt.Errorf("%w: failed to load application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}
	return s.repo.ListTransactionsByApplication(ctx, applicationID)
}
