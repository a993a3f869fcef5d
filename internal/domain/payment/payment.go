package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type TransactionType string

const (
	TypeInstallment TransactionType = "installment"
	TypeClosing     TransactionType = "closing"
	TypePenalty     TransactionType = "penalty"
	TypeOther       TransactionType = "other"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeInstallment, TypeClosing, TypePenalty, TypeOther:
		return true
	}
	return false
}

// Transaction is an append-only payment event. Corrections are new
// offsetting transactions, never updates.
type Transaction struct {
	ID              int64
	ApplicationID   int64
	ScheduleID      *int64 // nil for payments not tied to one installment
	AmountPaid      decimal.Decimal
	TransactionType TransactionType
	PaymentChannel  string
	PaymentMethod   string
	ProofURL        string
	PaidAt          time.Time
	RecordedBy      *int64
	Remarks         string
	CreatedAt       time.Time
}

func NewTransaction(applicationID int64, scheduleID *int64, amount decimal.Decimal, txType TransactionType, paidAt time.Time) (*Transaction, error) {
	if applicationID <= 0 {
		return nil, apperrors.NewValidationError("applicationId", "must reference an existing application")
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amountPaid", "must be greater than zero")
	}
	if !txType.Valid() {
		return nil, apperrors.NewValidationError("transactionType", "must be one of installment, closing, penalty, other")
	}
	if scheduleID != nil && *scheduleID <= 0 {
		return nil, apperrors.NewValidationError("scheduleId", "must reference an existing schedule entry")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	return &Transaction{
		ApplicationID:   applicationID,
		ScheduleID:      scheduleID,
		AmountPaid:      amount,
		TransactionType: txType,
		PaidAt:          paidAt,
	}, nil
}
