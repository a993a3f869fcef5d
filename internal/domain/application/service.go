package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/customer"
	"github.com/khanxayitrp/loan-system-sub000/internal/event"
	"github.com/khanxayitrp/loan-system-sub000/internal/infrastructure/monitoring"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type CreateApplicationInput struct {
	CustomerID   int64
	ProductID    int64
	TotalAmount  decimal.Decimal
	InterestRate decimal.Decimal
	LoanPeriod   int
	RequesterID  *int64
	Remarks      string
}

type NewCustomerInput struct {
	Name    string
	Phone   string
	Address string
}

type ApplicationService interface {
	CreateApplication(ctx context.Context, input CreateApplicationInput) (*LoanApplication, error)

	// CreateApplicationWithCustomer creates the customer row and the
	// application inside a single transaction.
	CreateApplicationWithCustomer(ctx context.Context, cust NewCustomerInput, input CreateApplicationInput) (*LoanApplication, *customer.Customer, error)

	GetApplication(ctx context.Context, applicationID int64) (*LoanApplication, error)

	GetSchedule(ctx context.Context, applicationID int64) ([]ScheduleEntry, error)

	ReviseTerms(ctx context.Context, applicationID int64, rev TermsRevision) (*LoanApplication, error)

	Confirm(ctx context.Context, applicationID int64, approverID *int64) (*LoanApplication, error)

	ChangeStatus(ctx context.Context, applicationID int64, target Status, actorID *int64) (*LoanApplication, error)
}

type applicationServiceImpl struct {
	repo               Repository
	customers          customer.Repository
	pub                event.Publisher
	strictPendingGuard bool
	logger             *slog.Logger
	now                func() time.Time
}

func NewApplicationService(r Repository, customers customer.Repository, pub event.Publisher, strictPendingGuard bool, logger *slog.Logger) ApplicationService {
	if r == nil {
		panic("application repository cannot be nil")
	}
	return &applicationServiceImpl{
		repo:               r,
		customers:          customers,
		pub:                pub,
		strictPendingGuard: strictPendingGuard,
		logger:             logger.With("component", "ApplicationService"),
		now:                time.Now,
	}
}

func (s *applicationServiceImpl) CreateApplication(ctx context.Context, input CreateApplicationInput) (*LoanApplication, error) {
	s.logger.Info("Creating new loan application", "customerID", input.CustomerID, "productID", input.ProductID)

	app, err := NewApplication(input.CustomerID, input.ProductID, input.TotalAmount, input.InterestRate, input.LoanPeriod, input.RequesterID)
	if err != nil {
		s.logger.Error("Failed to build loan application", "error", err)
		return nil, err
	}
	app.Remarks = input.Remarks

	created, err := s.repo.CreateApplication(ctx, app)
	if err != nil {
		s.logger.Error("Failed to save loan application", "error", err)
		return nil, err
	}

	monitoring.RecordApplicationCreated()
	s.logger.Info("Loan application created", "applicationID", created.ID, "contractNumber", created.ContractNumber)
	return created, nil
}

func (s *applicationServiceImpl) CreateApplicationWithCustomer(ctx context.Context, custInput NewCustomerInput, input CreateApplicationInput) (app *LoanApplication, cust *customer.Customer, err error) {
	s.logger.Info("Creating customer and loan application in one transaction")

	newCust, err := customer.NewCustomer(custInput.Name, custInput.Phone, custInput.Address)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	cust, err = s.customers.CreateCustomerInTx(ctx, tx, newCust)
	if err != nil {
		s.logger.Error("Failed to create customer in transaction", "error", err)
		return nil, nil, err
	}

	input.CustomerID = cust.ID
	newApp, err := NewApplication(input.CustomerID, input.ProductID, input.TotalAmount, input.InterestRate, input.LoanPeriod, input.RequesterID)
	if err != nil {
		return nil, nil, err
	}
	newApp.Remarks = input.Remarks

	app, err = s.repo.CreateApplicationInTx(ctx, tx, newApp)
	if err != nil {
		s.logger.Error("Failed to create application in transaction", "error", err)
		return nil, nil, err
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, nil, err
	}

	monitoring.RecordApplicationCreated()
	s.logger.Info("Customer and loan application created", "applicationID", app.ID, "customerID", cust.ID)
	return app, cust, nil
}

func (s *applicationServiceImpl) GetApplication(ctx context.Context, applicationID int64) (*LoanApplication, error) {
	app, err := s.repo.GetApplicationByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan application not found", "applicationID", applicationID)
			return nil, fmt.Errorf("%w: application with ID %d not found", apperrors.ErrNotFound, applicationID)
		}
		s.logger.Error("Failed to get loan application", "applicationID", applicationID, "error", err)
		return nil, fmt.Errorf("%w: failed to get application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}

	schedule, err := s.repo.GetScheduleByApplicationID(ctx, applicationID)
	if err != nil {
		s.logger.Error("Failed to get repayment schedule", "applicationID", applicationID, "error", err)
		return nil, fmt.Errorf("%w: failed to get schedule for application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}
	app.Schedule = schedule
	return app, nil
}

func (s *applicationServiceImpl) GetSchedule(ctx context.Context, applicationID int64) ([]ScheduleEntry, error) {
	schedule, err := s.repo.GetScheduleByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get schedule for application %d: %v", apperrors.ErrInternalServer, applicationID, err)
	}
	if len(schedule) == 0 {
		if _, checkErr := s.repo.GetApplicationByID(ctx, applicationID); errors.Is(checkErr, pgx.ErrNoRows) || errors.Is(checkErr, apperrors.ErrNotFound) {
			s.logger.Warn("Loan application not found", "applicationID", applicationID)
			return nil, fmt.Errorf("%w: application with ID %d not found when getting schedule", apperrors.ErrNotFound, applicationID)
		}
	}
	return schedule, nil
}

func (s *applicationServiceImpl) ReviseTerms(ctx context.Context, applicationID int64, rev TermsRevision) (app *LoanApplication, err error) {
	s.logger.Info("Revising loan application terms", "applicationID", applicationID)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	app, err = s.repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}

	oldStatus := app.Status
	if err = app.ReviseTerms(rev); err != nil {
		s.logger.Warn("Terms revision rejected", "applicationID", applicationID, "error", err)
		return nil, err
	}

	if err = s.repo.UpdateApplicationInTx(ctx, tx, app); err != nil {
		return nil, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	if app.Status == StatusCancelled {
		// the no-period revision path abandons the terms
		s.logger.Warn("Terms revision without loan period cancelled the application", "applicationID", applicationID)
		monitoring.RecordStatusTransition(string(oldStatus), string(app.Status))
		s.publishStatusChanged(ctx, app.ID, oldStatus, app.Status, nil)
	} else {
		s.logger.Info("Terms revised", "applicationID", applicationID,
			"loanPeriod", app.LoanPeriod, "monthlyInstallment", app.MonthlyInstallment.String())
	}
	return app, nil
}

func (s *applicationServiceImpl) Confirm(ctx context.Context, applicationID int64, approverID *int64) (app *LoanApplication, err error) {
	s.logger.Info("Confirming loan application", "applicationID", applicationID)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	app, err = s.repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}

	oldStatus := app.Status
	changed, err := app.Confirm(approverID, s.now())
	if err != nil {
		s.logger.Warn("Confirmation rejected", "applicationID", applicationID, "error", err)
		return nil, err
	}
	if !changed {
		s.logger.Info("Application already confirmed, returning unchanged", "applicationID", applicationID, "status", app.Status)
		if err = s.repo.CommitTx(ctx, tx); err != nil {
			return nil, err
		}
		return app, nil
	}

	if err = s.repo.UpdateApplicationInTx(ctx, tx, app); err != nil {
		return nil, err
	}

	// terms are final here; build and persist the schedule in the same
	// transaction so a half-written schedule is never visible
	entries, err := app.GenerateSchedule(*app.AppliedAt)
	if err != nil {
		s.logger.Error("Failed to generate repayment schedule", "applicationID", applicationID, "error", err)
		return nil, err
	}
	if err = s.repo.ReplaceScheduleInTx(ctx, tx, app.ID, entries); err != nil {
		s.logger.Error("Failed to persist repayment schedule", "applicationID", applicationID, "error", err)
		return nil, err
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	monitoring.RecordScheduleGenerated()
	monitoring.RecordStatusTransition(string(oldStatus), string(app.Status))
	s.logger.Info("Application confirmed and schedule generated",
		"applicationID", app.ID, "status", app.Status, "installments", len(entries))

	if s.pub != nil {
		pubErr := s.pub.PublishApplicationConfirmed(ctx, event.ApplicationConfirmedEvent{
			ApplicationID:  app.ID,
			ContractNumber: app.ContractNumber,
			CustomerID:     app.CustomerID,
			Status:         string(app.Status),
			Installments:   len(entries),
			Timestamp:      s.now(),
		})
		if pubErr != nil {
			s.logger.Error("Failed to publish confirmation event", "applicationID", app.ID, "error", pubErr)
		}
	}

	app.Schedule = entries
	return app, nil
}

func (s *applicationServiceImpl) ChangeStatus(ctx context.Context, applicationID int64, target Status, actorID *int64) (app *LoanApplication, err error) {
	s.logger.Info("Changing loan application status", "applicationID", applicationID, "target", target)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	app, err = s.repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}

	oldStatus := app.Status
	result, err := app.ChangeStatus(target, actorID, s.strictPendingGuard, s.now())
	if err != nil {
		s.logger.Warn("Status change rejected", "applicationID", applicationID, "target", target, "error", err)
		return nil, err
	}

	switch result {
	case TransitionNoopSameStatus:
		s.logger.Info("Status change is a no-op, application already in target status", "applicationID", applicationID, "status", app.Status)
	case TransitionNoopPendingGuard:
		s.logger.Warn("Ignoring status change on pending application, confirm it first", "applicationID", applicationID, "target", target)
	case TransitionApplied:
		if err = s.repo.UpdateApplicationInTx(ctx, tx, app); err != nil {
			return nil, err
		}
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	if result == TransitionApplied {
		monitoring.RecordStatusTransition(string(oldStatus), string(app.Status))
		s.logger.Info("Application status changed", "applicationID", app.ID, "from", oldStatus, "to", app.Status)
		s.publishStatusChanged(ctx, app.ID, oldStatus, app.Status, actorID)
	}
	return app, nil
}

func (s *applicationServiceImpl) publishStatusChanged(ctx context.Context, applicationID int64, from, to Status, actorID *int64) {
	if s.pub == nil {
		return
	}
	err := s.pub.PublishApplicationStatusChanged(ctx, event.ApplicationStatusChangedEvent{
		ApplicationID: applicationID,
		OldStatus:     string(from),
		NewStatus:     string(to),
		ActorID:       actorID,
		Timestamp:     s.now(),
	})
	if err != nil {
		s.logger.Error("Failed to publish status change event", "applicationID", applicationID, "error", err)
	}
}
