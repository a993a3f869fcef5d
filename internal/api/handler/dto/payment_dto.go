package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/payment"
)

type RecordPaymentRequest struct {
	ScheduleID      *int64 `json:"scheduleId,omitempty"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transactionType"`
	PaymentChannel  string `json:"paymentChannel,omitempty"`
	PaymentMethod   string `json:"paymentMethod,omitempty"`
	ProofURL        string `json:"proofUrl,omitempty"`
	PaidAt          string `json:"paidAt,omitempty"`
	RecordedBy      *int64 `json:"recordedBy,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("amount must be a positive decimal string")
	}
	if !payment.TransactionType(r.TransactionType).Valid() {
		return fmt.Errorf("transactionType %q is not valid", r.TransactionType)
	}
	if r.ScheduleID != nil && *r.ScheduleID <= 0 {
		return fmt.Errorf("scheduleId must be positive")
	}
	if r.PaidAt != "" {
		if _, err := time.Parse(time.RFC3339, r.PaidAt); err != nil {
			return fmt.Errorf("invalid paidAt format (use RFC3339): %w", err)
		}
	}
	return nil
}

type TransactionResponse struct {
	ID              int64     `json:"id"`
	ApplicationID   int64     `json:"applicationId"`
	ScheduleID      *int64    `json:"scheduleId,omitempty"`
	AmountPaid      string    `json:"amountPaid"`
	TransactionType string    `json:"transactionType"`
	PaymentChannel  string    `json:"paymentChannel,omitempty"`
	PaymentMethod   string    `json:"paymentMethod,omitempty"`
	ProofURL        string    `json:"proofUrl,omitempty"`
	PaidAt          time.Time `json:"paidAt"`
	RecordedBy      *int64    `json:"recordedBy,omitempty"`
	Remarks         string    `json:"remarks,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func NewTransactionResponse(t *payment.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		ApplicationID:   t.ApplicationID,
		ScheduleID:      t.ScheduleID,
		AmountPaid:      t.AmountPaid.StringFixed(2),
		TransactionType: string(t.TransactionType),
		PaymentChannel:  t.PaymentChannel,
		PaymentMethod:   t.PaymentMethod,
		ProofURL:        t.ProofURL,
		PaidAt:          t.PaidAt,
		RecordedBy:      t.RecordedBy,
		Remarks:         t.Remarks,
		CreatedAt:       t.CreatedAt,
	}
}

type OutstandingResponse struct {
	ApplicationID      int64  `json:"applicationId"`
	OutstandingBalance string `json:"outstandingBalance"`
}
