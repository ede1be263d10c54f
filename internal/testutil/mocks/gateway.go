package mocks

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockPaymentGateway mocks ports.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

var _ ports.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Sale(ctx context.Context, req *models.SaleRequest) (*models.SaleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SaleResult), args.Error(1)
}

func (m *MockPaymentGateway) BoardCard(ctx context.Context, creds models.MerchantCredentials, token string) (*models.BoardCardResult, error) {
	args := m.Called(ctx, creds, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BoardCardResult), args.Error(1)
}

// MockCredentialsProvider mocks ports.CredentialsProvider
type MockCredentialsProvider struct {
	mock.Mock
}

var _ ports.CredentialsProvider = (*MockCredentialsProvider)(nil)

func (m *MockCredentialsProvider) Resolve(ctx context.Context, processorID int64) (models.MerchantCredentials, error) {
	args := m.Called(ctx, processorID)
	return args.Get(0).(models.MerchantCredentials), args.Error(1)
}

// MockVaultTokenRepository mocks ports.VaultTokenRepository
type MockVaultTokenRepository struct {
	mock.Mock
}

var _ ports.VaultTokenRepository = (*MockVaultTokenRepository)(nil)

func (m *MockVaultTokenRepository) ExistsByToken(ctx context.Context, db ports.DBTX, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockVaultTokenRepository) GetByRecurSeries(ctx context.Context, db ports.DBTX, recurSeriesID int64) (*models.VaultTokenRecord, error) {
	args := m.Called(ctx, recurSeriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultTokenRecord), args.Error(1)
}

func (m *MockVaultTokenRepository) InsertIfNew(ctx context.Context, db ports.DBTX, record *models.VaultTokenRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockVaultTokenRepository) LockRecurSeries(ctx context.Context, tx ports.DBTX, recurSeriesID int64) error {
	args := m.Called(ctx, recurSeriesID)
	return args.Error(0)
}
