package payment

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/event"
	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type TxMock struct {
	pgx.Tx
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	var tx pgx.Tx
	if args.Get(0) != nil {
		tx = args.Get(0).(pgx.Tx)
	}
	return tx, args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) InsertTransactionInTx(ctx context.Context, tx pgx.Tx, txn *Transaction) (*Transaction, error) {
	args := m.Called(ctx, tx, txn)
	var r0 *Transaction
	if args.Get(0) != nil {
		r0 = args.Get(0).(*Transaction)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) ListTransactionsByApplication(ctx context.Context, applicationID int64) ([]Transaction, error) {
	args := m.Called(ctx, applicationID)
	var r0 []Transaction
	if args.Get(0) != nil {
		r0 = args.Get(0).([]Transaction)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) GetScheduleEntryForUpdate(ctx context.Context, tx pgx.Tx, scheduleID int64) (*application.ScheduleEntry, error) {
	args := m.Called(ctx, tx, scheduleID)
	var r0 *application.ScheduleEntry
	if args.Get(0) != nil {
		r0 = args.Get(0).(*application.ScheduleEntry)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) SumPaidForScheduleInTx(ctx context.Context, tx pgx.Tx, scheduleID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, tx, scheduleID)
	var r0 decimal.Decimal
	if args.Get(0) != nil {
		r0 = args.Get(0).(decimal.Decimal)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) UpdateScheduleStatusInTx(ctx context.Context, tx pgx.Tx, scheduleID int64, status application.PaymentStatus) error {
	args := m.Called(ctx, tx, scheduleID, status)
	return args.Error(0)
}

func (m *MockRepository) CountEntriesNotPaidInTx(ctx context.Context, tx pgx.Tx, applicationID int64) (int, error) {
	args := m.Called(ctx, tx, applicationID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetOutstandingBalance(ctx context.Context, applicationID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, applicationID)
	var r0 decimal.Decimal
	if args.Get(0) != nil {
		r0 = args.Get(0).(decimal.Decimal)
	}
	return r0, args.Error(1)
}

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	var tx pgx.Tx
	if args.Get(0) != nil {
		tx = args.Get(0).(pgx.Tx)
	}
	return tx, args.Error(1)
}

func (m *MockApplicationRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockApplicationRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockApplicationRepository) CreateApplication(ctx context.Context, app *application.LoanApplication) (*application.LoanApplication, error) {
	args := m.Called(ctx, app)
	var r0 *application.LoanApplication
	if args.Get(0) != nil {
		r0 = args.Get(0).(*application.LoanApplication)
	}
	return r0, args.Error(1)
}

func (m *MockApplicationRepository) CreateApplicationInTx(ctx context.Context, tx pgx.Tx, app *application.LoanApplication) (*application.LoanApplication, error) {
	args := m.Called(ctx, tx, app)
	var r0 *application.LoanApplication
	if args.Get(0) != nil {
		r0 = args.Get(0).(*application.LoanApplication)
	}
	return r0, args.Error(1)
}

func (m *MockApplicationRepository) GetApplicationByID(ctx context.Context, applicationID int64) (*application.LoanApplication, error) {
	args := m.Called(ctx, applicationID)
	var r0 *application.LoanApplication
	if args.Get(0) != nil {
		r0 = args.Get(0).(*application.LoanApplication)
	}
	return r0, args.Error(1)
}

func (m *MockApplicationRepository) GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, applicationID int64) (*application.LoanApplication, error) {
	args := m.Called(ctx, tx, applicationID)
	var r0 *application.LoanApplication
	if args.Get(0) != nil {
		r0 = args.Get(0).(*application.LoanApplication)
	}
	return r0, args.Error(1)
}

func (m *MockApplicationRepository) UpdateApplicationInTx(ctx context.Context, tx pgx.Tx, app *application.LoanApplication) error {
	args := m.Called(ctx, tx, app)
	return args.Error(0)
}

func (m *MockApplicationRepository) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, applicationID int64, status application.Status) error {
	args := m.Called(ctx, tx, applicationID, status)
	return args.Error(0)
}

func (m *MockApplicationRepository) ReplaceScheduleInTx(ctx context.Context, tx pgx.Tx, applicationID int64, entries []application.ScheduleEntry) error {
	args := m.Called(ctx, tx, applicationID, entries)
	return args.Error(0)
}

func (m *MockApplicationRepository) GetScheduleByApplicationID(ctx context.Context, applicationID int64) ([]application.ScheduleEntry, error) {
	args := m.Called(ctx, applicationID)
	var r0 []application.ScheduleEntry
	if args.Get(0) != nil {
		r0 = args.Get(0).([]application.ScheduleEntry)
	}
	return r0, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishApplicationConfirmed(ctx context.Context, e event.ApplicationConfirmedEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) PublishApplicationStatusChanged(ctx context.Context, e event.ApplicationStatusChangedEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) PublishPaymentRecorded(ctx context.Context, e event.PaymentRecordedEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func approvedApp() *application.LoanApplication {
	return &application.LoanApplication{
		ID:           10,
		CustomerID:   1,
		TotalAmount:  dec("1000"),
		InterestRate: dec("12"),
		LoanPeriod:   3,
		Status:       application.StatusApproved,
	}
}

func unpaidEntry() *application.ScheduleEntry {
	return &application.ScheduleEntry{
		ID:              11,
		ApplicationID:   10,
		TotalDue:        dec("373.33"),
		Discounts:       decimal.Zero,
		Penalty:         decimal.Zero,
		PaymentStatus:   application.PaymentStatusUnpaid,
		PrincipalAmount: dec("333.33"),
		InterestAmount:  dec("40"),
	}
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	ctx := context.Background()
	scheduleID := int64(11)
	paidAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first payment leaves the entry partial", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockAppRepo := new(MockApplicationRepository)
		mockPub := new(MockPublisher)
		service := NewLedgerService(mockRepo, mockAppRepo, mockPub, testLogger)

		tx := &TxMock{}
		created := &Transaction{ID: 100, ApplicationID: 10, ScheduleID: &scheduleID, AmountPaid: dec("200"), TransactionType: TypeInstallment}

		mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
		mockRepo.On("BeginTx", ctx).Return(tx, nil)
		mockRepo.On("GetScheduleEntryForUpdate", ctx, tx, scheduleID).Return(unpaidEntry(), nil)
		mockRepo.On("InsertTransactionInTx", ctx, tx, mock.Anything).Return(created, nil)
		mockRepo.On("SumPaidForScheduleInTx", ctx, tx, scheduleID).Return(dec("200"), nil)
		mockRepo.On("UpdateScheduleStatusInTx", ctx, tx, scheduleID, application.PaymentStatusPartial).Return(nil)
		mockRepo.On("CountEntriesNotPaidInTx", ctx, tx, int64(10)).Return(3, nil)
		mockRepo.On("CommitTx", ctx, tx).Return(nil)
		mockPub.On("PublishPaymentRecorded", ctx, mock.Anything).Return(nil)

		result, err := service.RecordPayment(ctx, RecordPaymentInput{
			ApplicationID:   10,
			ScheduleID:      &scheduleID,
			Amount:          dec("200"),
			TransactionType: TypeInstallment,
			PaidAt:          paidAt,
		})

		require.NoError(t, err)
		assert.Equal(t, created, result)
		mockAppRepo.AssertNotCalled(t, "UpdateStatusInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("second payment settles the entry", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockAppRepo := new(MockApplicationRepository)
		service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

		tx := &TxMock{}
		entry := unpaidEntry()
		entry.PaymentStatus = application.PaymentStatusPartial
		created := &Transaction{ID: 101, ApplicationID: 10, ScheduleID: &scheduleID, AmountPaid: dec("173.33"), TransactionType: TypeInstallment}

		mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
		mockRepo.On("BeginTx", ctx).Return(tx, nil)
		mockRepo.On("GetScheduleEntryForUpdate", ctx, tx, scheduleID).Return(entry, nil)
		mockRepo.On("InsertTransactionInTx", ctx, tx, mock.Anything).Return(created, nil)
		mockRepo.On("SumPaidForScheduleInTx", ctx, tx, scheduleID).Return(dec("373.33"), nil)
		mockRepo.On("UpdateScheduleStatusInTx", ctx, tx, scheduleID, application.PaymentStatusPaid).Return(nil)
		mockRepo.On("CountEntriesNotPaidInTx", ctx, tx, int64(10)).Return(2, nil)
		mockRepo.On("CommitTx", ctx, tx).Return(nil)

		_, err := service.RecordPayment(ctx, RecordPaymentInput{
			ApplicationID:   10,
			ScheduleID:      &scheduleID,
			Amount:          dec("173.33"),
			TransactionType: TypeInstallment,
			PaidAt:          paidAt,
		})

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})
}

func TestRecordPaymentCompletesApplication(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	tx := &TxMock{}
	scheduleID := int64(13)
	entry := unpaidEntry()
	entry.ID = scheduleID
	entry.TotalDue = dec("373.34")
	created := &Transaction{ID: 102, ApplicationID: 10, ScheduleID: &scheduleID, AmountPaid: dec("373.34"), TransactionType: TypeInstallment}

	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockRepo.On("GetScheduleEntryForUpdate", ctx, tx, scheduleID).Return(entry, nil)
	mockRepo.On("InsertTransactionInTx", ctx, tx, mock.Anything).Return(created, nil)
	mockRepo.On("SumPaidForScheduleInTx", ctx, tx, scheduleID).Return(dec("373.34"), nil)
	mockRepo.On("UpdateScheduleStatusInTx", ctx, tx, scheduleID, application.PaymentStatusPaid).Return(nil)
	mockRepo.On("CountEntriesNotPaidInTx", ctx, tx, int64(10)).Return(0, nil)
	mockAppRepo.On("UpdateStatusInTx", ctx, tx, int64(10), application.StatusCompleted).Return(nil)
	mockRepo.On("CommitTx", ctx, tx).Return(nil)

	_, err := service.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID:   10,
		ScheduleID:      &scheduleID,
		Amount:          dec("373.34"),
		TransactionType: TypeInstallment,
	})

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockAppRepo.AssertExpectations(t)
}

func TestRecordClosingPayment(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	tx := &TxMock{}
	created := &Transaction{ID: 103, ApplicationID: 10, AmountPaid: dec("700"), TransactionType: TypeClosing}

	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockRepo.On("InsertTransactionInTx", ctx, tx, mock.Anything).Return(created, nil)
	mockAppRepo.On("GetApplicationForUpdate", ctx, tx, int64(10)).Return(approvedApp(), nil)
	mockAppRepo.On("UpdateStatusInTx", ctx, tx, int64(10), application.StatusClosedEarly).Return(nil)
	mockRepo.On("CommitTx", ctx, tx).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID:   10,
		Amount:          dec("700"),
		TransactionType: TypeClosing,
	})

	require.NoError(t, err)
	assert.Equal(t, created, result)
	mockRepo.AssertExpectations(t)
	mockAppRepo.AssertExpectations(t)
}

func TestRecordClosingPaymentOnTerminalApplication(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	app := approvedApp()
	app.Status = application.StatusCompleted

	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(app, nil)

	_, err := service.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID:   10,
		Amount:          dec("700"),
		TransactionType: TypeClosing,
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.ErrorIs(t, err, apperrors.ErrTerminalStatus)
	mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestRecordPaymentNonPositiveAmount(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	_, err := service.RecordPayment(context.Background(), RecordPaymentInput{
		ApplicationID:   10,
		Amount:          dec("0"),
		TransactionType: TypeInstallment,
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPaymentAmount)
	mockAppRepo.AssertNotCalled(t, "GetApplicationByID", mock.Anything, mock.Anything)
}

func TestRecordPaymentUnknownApplication(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	mockAppRepo.On("GetApplicationByID", ctx, int64(404)).Return(nil, pgx.ErrNoRows)

	_, err := service.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID:   404,
		Amount:          dec("200"),
		TransactionType: TypeInstallment,
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestRecordPaymentForeignScheduleEntry(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	tx := &TxMock{}
	scheduleID := int64(11)
	entry := unpaidEntry()
	entry.ApplicationID = 999

	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockRepo.On("GetScheduleEntryForUpdate", ctx, tx, scheduleID).Return(entry, nil)
	mockRepo.On("RollbackTx", ctx, tx).Return(nil)

	_, err := service.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID:   10,
		ScheduleID:      &scheduleID,
		Amount:          dec("200"),
		TransactionType: TypeInstallment,
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	mockRepo.AssertCalled(t, "RollbackTx", ctx, tx)
	mockRepo.AssertNotCalled(t, "InsertTransactionInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutstandingBalance(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("GetOutstandingBalance", ctx, int64(10)).Return(dec("546.66"), nil)

	got, err := service.OutstandingBalance(ctx, 10)

	require.NoError(t, err)
	assert.True(t, got.Equal(dec("546.66")), got.String())
}

func TestOutstandingBalanceFlooredAtZero(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("GetOutstandingBalance", ctx, int64(10)).Return(dec("-0.01"), nil)

	got, err := service.OutstandingBalance(ctx, 10)

	require.NoError(t, err)
	assert.True(t, got.IsZero(), got.String())
}

func TestListPayments(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAppRepo := new(MockApplicationRepository)
	service := NewLedgerService(mockRepo, mockAppRepo, nil, testLogger)

	ctx := context.Background()
	expected := []Transaction{{ID: 1}, {ID: 2}}
	mockAppRepo.On("GetApplicationByID", ctx, int64(10)).Return(approvedApp(), nil)
	mockRepo.On("ListTransactionsByApplication", ctx, int64(10)).Return(expected, nil)

	got, err := service.ListPayments(ctx, 10)

	require.NoError(t, err)
	assert.Equal(t, expected, got)
	mockRepo.AssertExpectations(t)
}
