package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusVerifying   Status = "verifying"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
	StatusClosedEarly Status = "closed_early"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerifying, StatusApproved, StatusRejected,
		StatusCancelled, StatusCompleted, StatusClosedEarly:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted, StatusClosedEarly:
		return true
	}
	return false
}

// LoanApplication is the aggregate root for a financed purchase. Terms are
// mutable until the application is confirmed; from then on they are the copy
// of record regardless of later catalog price changes.
type LoanApplication struct {
	ID                 int64
	ContractNumber     string
	CustomerID         int64
	ProductID          int64
	TotalAmount        decimal.Decimal
	InterestRate       decimal.Decimal // percent, flat over the whole term
	LoanPeriod         int             // number of monthly installments
	MonthlyInstallment decimal.Decimal
	Status             Status
	RequesterID        *int64
	ApproverID         *int64
	AppliedAt          *time.Time
	ApprovedAt         *time.Time
	Remarks            string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Schedule []ScheduleEntry
}

// IsConfirmed is derived from the status rather than stored, so the pair can
// never disagree. A pending application is always unconfirmed; cancellation
// is terminal either way, so the distinction is moot there.
func (a *LoanApplication) IsConfirmed() bool {
	switch a.Status {
	case StatusPending, StatusCancelled:
		return false
	}
	return true
}

func NewContractNumber() string {
	return "LN-" + strings.ToUpper(uuid.NewString()[:18])
}

func NewApplication(customerID, productID int64, totalAmount, interestRate decimal.Decimal, loanPeriod int, requesterID *int64) (*LoanApplication, error) {
	if customerID <= 0 {
		return nil, apperrors.NewValidationError("customerId", "must reference an existing customer")
	}
	if productID <= 0 {
		return nil, apperrors.NewValidationError("productId", "must reference an existing product")
	}
	if !totalAmount.IsPositive() {
		return nil, apperrors.NewValidationError("totalAmount", "must be greater than zero")
	}
	if interestRate.IsNegative() {
		return nil, apperrors.NewValidationError("interestRate", "must not be negative")
	}
	if loanPeriod <= 0 {
		return nil, apperrors.NewValidationError("loanPeriod", "must be a positive number of installments")
	}

	return &LoanApplication{
		ContractNumber:     NewContractNumber(),
		CustomerID:         customerID,
		ProductID:          productID,
		TotalAmount:        totalAmount,
		InterestRate:       interestRate,
		LoanPeriod:         loanPeriod,
		MonthlyInstallment: MonthlyInstallment(totalAmount, interestRate, loanPeriod),
		Status:             StatusPending,
		RequesterID:        requesterID,
	}, nil
}

// TermsRevision carries the optional fields of a pre-confirmation update.
type TermsRevision struct {
	TotalAmount  *decimal.Decimal
	InterestRate *decimal.Decimal
	LoanPeriod   *int
	Remarks      *string
}

// ReviseTerms applies a pre-confirmation update. A revision that touches the
// loan period recomputes the cached monthly installment and keeps the
// application pending; a revision that leaves the period alone abandons the
// terms and cancels the application. The second branch mirrors the upstream
// product contract and is intentionally preserved.
func (a *LoanApplication) ReviseTerms(rev TermsRevision) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: %w: cannot revise terms in status %q", apperrors.ErrConflict, apperrors.ErrTerminalStatus, a.Status)
	}
	if a.IsConfirmed() {
		return fmt.Errorf("%w: %w", apperrors.ErrConflict, apperrors.ErrTermsLocked)
	}

	if rev.Remarks != nil {
		a.Remarks = *rev.Remarks
	}

	if rev.LoanPeriod == nil {
		a.Status = StatusCancelled
		return nil
	}

	if *rev.LoanPeriod <= 0 {
		return apperrors.NewValidationError("loanPeriod", "must be a positive number of installments")
	}
	if rev.TotalAmount != nil {
		if !rev.TotalAmount.IsPositive() {
			return apperrors.NewValidationError("totalAmount", "must be greater than zero")
		}
		a.TotalAmount = *rev.TotalAmount
	}
	if rev.InterestRate != nil {
		if rev.InterestRate.IsNegative() {
			return apperrors.NewValidationError("interestRate", "must not be negative")
		}
		a.InterestRate = *rev.InterestRate
	}

	a.LoanPeriod = *rev.LoanPeriod
	a.MonthlyInstallment = MonthlyInstallment(a.TotalAmount, a.InterestRate, a.LoanPeriod)
	a.Status = StatusPending
	return nil
}

// Confirm commits the terms. Without an approver the application enters
// verification; with one it is approved outright. Timestamps are first-write-
// wins, so confirming twice is a no-op and never re-stamps anything.
func (a *LoanApplication) Confirm(approverID *int64, now time.Time) (changed bool, err error) {
	if a.Status.Terminal() {
		return false, fmt.Errorf("%w: %w: cannot confirm in status %q", apperrors.ErrConflict, apperrors.ErrTerminalStatus, a.Status)
	}
	if a.IsConfirmed() {
		return false, nil
	}

	if a.AppliedAt == nil {
		t := now
		a.AppliedAt = &t
	}

	if approverID != nil {
		a.ApproverID = approverID
		a.Status = StatusApproved
		if a.ApprovedAt == nil {
			t := now
			a.ApprovedAt = &t
		}
	} else {
		a.Status = StatusVerifying
	}
	return true, nil
}

// TransitionResult reports what an administrative status change actually did.
type TransitionResult int

const (
	TransitionApplied TransitionResult = iota
	TransitionNoopSameStatus
	TransitionNoopPendingGuard
)

// ChangeStatus applies an administrative transition (approve, reject, close
// early, ...). A pending application must go through Confirm first: with the
// strict guard off the request is accepted but ignored, with it on the
// request fails. Requesting the current status again is a no-op.
func (a *LoanApplication) ChangeStatus(target Status, actorID *int64, strictPendingGuard bool, now time.Time) (TransitionResult, error) {
	if !target.Valid() || target == StatusPending {
		return TransitionNoopSameStatus, fmt.Errorf("%w: invalid target status %q", apperrors.ErrInvalidArgument, target)
	}
	if target == a.Status {
		return TransitionNoopSameStatus, nil
	}
	if a.Status.Terminal() {
		return TransitionNoopSameStatus, fmt.Errorf("%w: %w: no transition allowed from %q", apperrors.ErrConflict, apperrors.ErrTerminalStatus, a.Status)
	}
	if a.Status == StatusPending {
		if strictPendingGuard {
			return TransitionNoopPendingGuard, fmt.Errorf("%w: a pending application must be confirmed before a status change", apperrors.ErrConflict)
		}
		return TransitionNoopPendingGuard, nil
	}

	if target == StatusApproved {
		if actorID != nil {
			a.ApproverID = actorID
		}
		if a.ApprovedAt == nil {
			t := now
			a.ApprovedAt = &t
		}
	}
	a.Status = target
	return TransitionApplied, nil
}
