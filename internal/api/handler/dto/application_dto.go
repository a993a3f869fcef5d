package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
)

type CreateApplicationRequest struct {
	CustomerID   int64  `json:"customerId"`
	ProductID    int64  `json:"productId"`
	TotalAmount  string `json:"totalAmount"`
	InterestRate string `json:"interestRate"`
	LoanPeriod   int    `json:"loanPeriod"`
	RequesterID  *int64 `json:"requesterId,omitempty"`
	Remarks      string `json:"remarks,omitempty"`

	// Optional inline customer; when set the customer is created in the same
	// transaction as the application and CustomerID is ignored.
	NewCustomer *NewCustomerRequest `json:"newCustomer,omitempty"`
}

type NewCustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (r *CreateApplicationRequest) Validate() error {
	if r.NewCustomer == nil && r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be positive or newCustomer must be provided")
	}
	if r.NewCustomer != nil && r.NewCustomer.Name == "" {
		return fmt.Errorf("newCustomer.name must not be empty")
	}
	if r.ProductID <= 0 {
		return fmt.Errorf("productId must be positive")
	}
	amount, err := decimal.NewFromString(r.TotalAmount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("totalAmount must be a positive decimal string")
	}
	rate, err := decimal.NewFromString(r.InterestRate)
	if err != nil || rate.IsNegative() {
		return fmt.Errorf("interestRate must be a non-negative decimal string")
	}
	if r.LoanPeriod <= 0 {
		return fmt.Errorf("loanPeriod must be positive")
	}
	return nil
}

type ReviseTermsRequest struct {
	TotalAmount  *string `json:"totalAmount,omitempty"`
	InterestRate *string `json:"interestRate,omitempty"`
	LoanPeriod   *int    `json:"loanPeriod,omitempty"`
	Remarks      *string `json:"remarks,omitempty"`
}

func (r *ReviseTermsRequest) Validate() error {
	if r.TotalAmount == nil && r.InterestRate == nil && r.LoanPeriod == nil && r.Remarks == nil {
		return fmt.Errorf("at least one field must be provided")
	}
	if r.TotalAmount != nil {
		if amount, err := decimal.NewFromString(*r.TotalAmount); err != nil || !amount.IsPositive() {
			return fmt.Errorf("totalAmount must be a positive decimal string")
		}
	}
	if r.InterestRate != nil {
		if rate, err := decimal.NewFromString(*r.InterestRate); err != nil || rate.IsNegative() {
			return fmt.Errorf("interestRate must be a non-negative decimal string")
		}
	}
	if r.LoanPeriod != nil && *r.LoanPeriod <= 0 {
		return fmt.Errorf("loanPeriod must be positive")
	}
	return nil
}

func (r *ReviseTermsRequest) ToRevision() application.TermsRevision {
	rev := application.TermsRevision{
		LoanPeriod: r.LoanPeriod,
		Remarks:    r.Remarks,
	}
	if r.TotalAmount != nil {
		amount, _ := decimal.NewFromString(*r.TotalAmount)
		rev.TotalAmount = &amount
	}
	if r.InterestRate != nil {
		rate, _ := decimal.NewFromString(*r.InterestRate)
		rev.InterestRate = &rate
	}
	return rev
}

type ConfirmApplicationRequest struct {
	ApproverID *int64 `json:"approverId,omitempty"`
}

type ChangeStatusRequest struct {
	Status  string `json:"status"`
	ActorID *int64 `json:"actorId,omitempty"`
}

func (r *ChangeStatusRequest) Validate() error {
	if !application.Status(r.Status).Valid() {
		return fmt.Errorf("status %q is not a valid application status", r.Status)
	}
	return nil
}

type ApplicationResponse struct {
	ID                 int64                   `json:"id"`
	ContractNumber     string                  `json:"contractNumber"`
	CustomerID         int64                   `json:"customerId"`
	ProductID          int64                   `json:"productId"`
	TotalAmount        string                  `json:"totalAmount"`
	InterestRate       string                  `json:"interestRate"`
	LoanPeriod         int                     `json:"loanPeriod"`
	MonthlyInstallment string                  `json:"monthlyInstallment"`
	Status             string                  `json:"status"`
	IsConfirmed        bool                    `json:"isConfirmed"`
	RequesterID        *int64                  `json:"requesterId,omitempty"`
	ApproverID         *int64                  `json:"approverId,omitempty"`
	AppliedAt          *time.Time              `json:"appliedAt,omitempty"`
	ApprovedAt         *time.Time              `json:"approvedAt,omitempty"`
	Remarks            string                  `json:"remarks,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
	UpdatedAt          time.Time               `json:"updatedAt"`
	Schedule           []ScheduleEntryResponse `json:"schedule,omitempty"`
}

type ScheduleEntryResponse struct {
	ID                 int64  `json:"id"`
	InstallmentNumber  int    `json:"installmentNumber"`
	DueDate            string `json:"dueDate"`
	PrincipalAmount    string `json:"principalAmount"`
	InterestAmount     string `json:"interestAmount"`
	TotalDue           string `json:"totalDue"`
	Discounts          string `json:"discounts"`
	Penalty            string `json:"penalty"`
	RemainingPrincipal string `json:"remainingPrincipal"`
	PaymentStatus      string `json:"paymentStatus"`
}

func NewApplicationResponse(app *application.LoanApplication, includeSchedule bool) ApplicationResponse {
	resp := ApplicationResponse{
		ID:                 app.ID,
		ContractNumber:     app.ContractNumber,
		CustomerID:         app.CustomerID,
		ProductID:          app.ProductID,
		TotalAmount:        app.TotalAmount.StringFixed(2),
		InterestRate:       app.InterestRate.String(),
		LoanPeriod:         app.LoanPeriod,
		MonthlyInstallment: app.MonthlyInstallment.StringFixed(2),
		Status:             string(app.Status),
		IsConfirmed:        app.IsConfirmed(),
		RequesterID:        app.RequesterID,
		ApproverID:         app.ApproverID,
		AppliedAt:          app.AppliedAt,
		ApprovedAt:         app.ApprovedAt,
		Remarks:            app.Remarks,
		CreatedAt:          app.CreatedAt,
		UpdatedAt:          app.UpdatedAt,
	}
	if includeSchedule {
		resp.Schedule = NewScheduleResponse(app.Schedule)
	}
	return resp
}

func NewScheduleResponse(entries []application.ScheduleEntry) []ScheduleEntryResponse {
	out := make([]ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScheduleEntryResponse{
			ID:                 e.ID,
			InstallmentNumber:  e.InstallmentNumber,
			DueDate:            e.DueDate.Format(time.RFC3339[:10]),
			PrincipalAmount:    e.PrincipalAmount.StringFixed(2),
			InterestAmount:     e.InterestAmount.StringFixed(2),
			TotalDue:           e.TotalDue.StringFixed(2),
			Discounts:          e.Discounts.StringFixed(2),
			Penalty:            e.Penalty.StringFixed(2),
			RemainingPrincipal: e.RemainingPrincipal.StringFixed(2),
			PaymentStatus:      string(e.PaymentStatus),
		})
	}
	return out
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
