package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/stretchr/testify/mock"
)

// MockVaultManager is a mock implementation of serviceports.VaultManager
type MockVaultManager struct {
	mock.Mock
}

var _ serviceports.VaultManager = (*MockVaultManager)(nil)

func (m *MockVaultManager) BoardCard(ctx context.Context, req serviceports.BoardRequest) (*models.VaultTokenRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultTokenRecord), args.Error(1)
}

func (m *MockVaultManager) PersistIfNew(ctx context.Context, record *models.VaultTokenRecord) (*models.VaultTokenRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultTokenRecord), args.Error(1)
}

func (m *MockVaultManager) TokenForSeries(ctx context.Context, recurSeriesID int64) (string, error) {
	args := m.Called(ctx, recurSeriesID)
	return args.String(0), args.Error(1)
}

// MockPaymentProcessor is a mock implementation of serviceports.PaymentProcessor
type MockPaymentProcessor struct {
	mock.Mock
}

var _ serviceports.PaymentProcessor = (*MockPaymentProcessor)(nil)

func (m *MockPaymentProcessor) Process(ctx context.Context, attempt serviceports.PaymentAttempt) (*models.PaymentOutcome, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentOutcome), args.Error(1)
}

func (m *MockPaymentProcessor) DoPayment(ctx context.Context, params map[string]any) (map[string]any, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// MockRecurringService is a mock implementation of serviceports.RecurringService
type MockRecurringService struct {
	mock.Mock
}

var _ serviceports.RecurringService = (*MockRecurringService)(nil)

func (m *MockRecurringService) ProcessContributionPayment(ctx context.Context, contribution *models.Contribution, opts models.RecurOptions, originalContributionID int64) (*serviceports.RecurringResult, error) {
	args := m.Called(ctx, contribution, opts, originalContributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serviceports.RecurringResult), args.Error(1)
}

func (m *MockRecurringService) ProcessDue(ctx context.Context, asOf time.Time, limit int) (*serviceports.BatchSummary, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serviceports.BatchSummary), args.Error(1)
}
