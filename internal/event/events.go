package event

import "time"

type ApplicationConfirmedEvent struct {
	ApplicationID  int64     `json:"applicationId"`
	ContractNumber string    `json:"contractNumber"`
	CustomerID     int64     `json:"customerId"`
	Status         string    `json:"status"`
	Installments   int       `json:"installments"`
	Timestamp      time.Time `json:"timestamp"`
}

type ApplicationStatusChangedEvent struct {
	ApplicationID int64     `json:"applicationId"`
	OldStatus     string    `json:"oldStatus"`
	NewStatus     string    `json:"newStatus"`
	ActorID       *int64    `json:"actorId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type PaymentRecordedEvent struct {
	TransactionID   int64     `json:"transactionId"`
	ApplicationID   int64     `json:"applicationId"`
	ScheduleID      *int64    `json:"scheduleId,omitempty"`
	Amount          string    `json:"amount"`
	TransactionType string    `json:"transactionType"`
	Timestamp       time.Time `json:"timestamp"`
}
