package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockHostPlatform mocks ports.HostPlatform
type MockHostPlatform struct {
	mock.Mock
}

var _ ports.HostPlatform = (*MockHostPlatform)(nil)

func (m *MockHostPlatform) GetProcessorSettings(ctx context.Context, processorID int64) (*models.ProcessorSettings, error) {
	args := m.Called(ctx, processorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessorSettings), args.Error(1)
}

func (m *MockHostPlatform) DefaultCurrency(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockHostPlatform) ContributionStatusID(ctx context.Context, status models.ContributionStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *MockHostPlatform) CardTypeOptionValue(ctx context.Context, cardTypeName string) (*int, error) {
	args := m.Called(ctx, cardTypeName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int), args.Error(1)
}

func (m *MockHostPlatform) CreatePaymentToken(ctx context.Context, token *models.PaymentTokenRecord) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

// MockContributionLedger mocks ports.ContributionLedger
type MockContributionLedger struct {
	mock.Mock
}

var _ ports.ContributionLedger = (*MockContributionLedger)(nil)

func (m *MockContributionLedger) RepeatTransaction(ctx context.Context, req ports.RepeatTransactionRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContributionLedger) CreateContribution(ctx context.Context, c *models.Contribution) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContributionLedger) PatchContribution(ctx context.Context, patch ports.ContributionPatch) error {
	return m.Called(ctx, patch).Error(0)
}

func (m *MockContributionLedger) CompleteTransaction(ctx context.Context, req ports.CompleteTransactionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockContributionLedger) SetValue(ctx context.Context, contributionID int64, field, value string) error {
	return m.Called(ctx, contributionID, field, value).Error(0)
}

func (m *MockContributionLedger) CreateMembershipPayment(ctx context.Context, contributionID, membershipID int64) error {
	return m.Called(ctx, contributionID, membershipID).Error(0)
}

func (m *MockContributionLedger) FindTemplateContribution(ctx context.Context, recurSeriesID int64, amount decimal.Decimal) (int64, error) {
	args := m.Called(ctx, recurSeriesID, amount)
	return args.Get(0).(int64), args.Error(1)
}

// MockRecurringSchedule mocks ports.RecurringSchedule
type MockRecurringSchedule struct {
	mock.Mock
}

var _ ports.RecurringSchedule = (*MockRecurringSchedule)(nil)

func (m *MockRecurringSchedule) ListDueRecurringSeries(ctx context.Context, asOf time.Time, limit int) ([]*models.RecurringSeries, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringSeries), args.Error(1)
}

func (m *MockRecurringSchedule) AdvanceRecurringSchedule(ctx context.Context, recurSeriesID int64, next time.Time) error {
	return m.Called(ctx, recurSeriesID, next).Error(0)
}
