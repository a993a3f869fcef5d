package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/api/handler/dto"
	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type ApplicationHandler struct {
	service application.ApplicationService
	logger  *slog.Logger
}

func NewApplicationHandler(s application.ApplicationService, l *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: s,
		logger:  l.With("component", "ApplicationHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrTerminalStatus), errors.Is(err, apperrors.ErrTermsLocked):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func getApplicationIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "applicationID")
	if idStr == "" {
		return 0, fmt.Errorf("applicationID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// CreateApplication handles the creation of a new loan application.
//
// @Summary Create a new loan application
// @Description Creates a loan application in pending status. When newCustomer is provided, the customer is created in the same transaction.
// @Tags Applications
// @Accept json
// @Produce json
// @Param request body dto.CreateApplicationRequest true "Application creation request payload"
// @Success 201 {object} dto.ApplicationResponse "Application successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications [post]
// @Security BearerAuth
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.TotalAmount)
	rate, _ := decimal.NewFromString(req.InterestRate)
	input := application.CreateApplicationInput{
		CustomerID:   req.CustomerID,
		ProductID:    req.ProductID,
		TotalAmount:  amount,
		InterestRate: rate,
		LoanPeriod:   req.LoanPeriod,
		RequesterID:  req.RequesterID,
		Remarks:      req.Remarks,
	}

	var created *application.LoanApplication
	var err error
	if req.NewCustomer != nil {
		created, _, err = h.service.CreateApplicationWithCustomer(r.Context(), application.NewCustomerInput{
			Name:    req.NewCustomer.Name,
			Phone:   req.NewCustomer.Phone,
			Address: req.NewCustomer.Address,
		}, input)
	} else {
		created, err = h.service.CreateApplication(r.Context(), input)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewApplicationResponse(created, false))
}

// GetApplication returns a loan application with its schedule.
//
// @Summary Get a loan application
// @Tags Applications
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {object} dto.ApplicationResponse
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID} [get]
// @Security BearerAuth
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.GetApplication(r.Context(), applicationID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, true))
}

// GetSchedule returns the repayment schedule of a loan application.
//
// @Summary Get a repayment schedule
// @Tags Applications
// @Produce json
// @Param applicationID path int true "Application ID"
// @Success 200 {array} dto.ScheduleEntryResponse
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{applicationID}/schedule [get]
// @Security BearerAuth
func (h *ApplicationHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), applicationID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(schedule))
}

// ReviseTerms updates the terms of an unconfirmed application.
//
// @Summary Revise application terms
// @Description Updates terms while the application is unconfirmed. A revision without loanPeriod abandons the terms and cancels the application.
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.ReviseTermsRequest true "Terms revision payload"
// @Success 200 {object} dto.ApplicationResponse
// @Failure 409 {object} dto.ErrorResponse "Terms are locked or application is terminal"
// @Router /applications/{applicationID}/terms [patch]
// @Security BearerAuth
func (h *ApplicationHandler) ReviseTerms(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.ReviseTermsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.ReviseTerms(r.Context(), applicationID, req.ToRevision())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, false))
}

// Confirm commits the application's terms and generates the schedule.
//
// @Summary Confirm a loan application
// @Description Commits the terms. Without an approver the application moves to verifying; with one it is approved directly. The repayment schedule is generated in the same transaction.
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.ConfirmApplicationRequest true "Confirmation payload"
// @Success 200 {object} dto.ApplicationResponse
// @Failure 409 {object} dto.ErrorResponse "Application is terminal"
// @Router /applications/{applicationID}/confirm [post]
// @Security BearerAuth
func (h *ApplicationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.ConfirmApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.Confirm(r.Context(), applicationID, req.ApproverID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, true))
}

// ChangeStatus applies an administrative status transition.
//
// @Summary Change application status
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationID path int true "Application ID"
// @Param request body dto.ChangeStatusRequest true "Status change payload"
// @Success 200 {object} dto.ApplicationResponse
// @Failure 409 {object} dto.ErrorResponse "Transition not allowed"
// @Router /applications/{applicationID}/status [post]
// @Security BearerAuth
func (h *ApplicationHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	applicationID, err := getApplicationIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.ChangeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	app, err := h.service.ChangeStatus(r.Context(), applicationID, application.Status(req.Status), req.ActorID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewApplicationResponse(app, false))
}
