package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/api/handler/dto"
	"github.com/khanxayitrp/loan-system-sub000/internal/domain/payment"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type PaymentHandler struct {
	service payment.LedgerService
	logger  *slog.Logger
}

func NewPaymentHandler(s payment.LedgerService, l *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: s,
		logger:  l.With("component", "PaymentHandler"),
	}
}

// RecordPayment appends a payment transaction to an application's ledger.
//
// @Summary Record a payment
// @Description Appends a payment transaction. Installment payments linked to a schedule entry reconcile that entry's payment status in the same transaction.
// @Tags Payments
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid payment"
// @Failure 404 {object} dto.ErrorResponse "Application or schedule entry not found"
// @Router /applications/{applicationID}/payments [post]
// @Security BearerAuth
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	var paidAt time.Time
	if req.PaidAt != "" {
		paidAt, _ = time.Parse(time.RFC3339, req.PaidAt)
	}

	created, err := h.service.RecordPayment(r.Context(), payment.RecordPaymentInput{
		ApplicationID:   applicationID,
		ScheduleID:      req.ScheduleID,
		Amount:          amount,
		TransactionType: payment.TransactionType(req.TransactionType),
		PaymentChannel:  req.PaymentChannel,
		PaymentMethod:   req.PaymentMethod,
		ProofURL:        req.ProofURL,
		PaidAt:          paidAt,
		RecordedBy:      req.RecordedBy,
		Remarks:         req.Remarks,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewTransactionResponse(created))
}

// ListPayments returns the payment transactions of an application.
//
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {array} dto.TransactionResponse
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID}/payments [get]
// @Security BearerAuth
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	transactions, err := h.service.ListPayments(r.Context(), applicationID)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(transactions))
	for i := range transactions {
		out = append(out, dto.NewTransactionResponse(&transactions[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetOutstanding returns the outstanding balance of an application.
//
// @Summary Get outstanding balance
// @Tags Payments
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {object} dto.OutstandingResponse
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID}/outstanding [get]
// @Security BearerAuth
func (h *PaymentHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	outstanding, err := h.service.OutstandingBalance(r.Context(), applicationID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.OutstandingResponse{
		ApplicationID:      applicationID,
		OutstandingBalance: outstanding.StringFixed(2),
	})
}
