package ports

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
)

// PaymentGateway is the Merchantware card gateway.
// Approvals and declines are returned as data; only transport and protocol
// failures are errors.
type PaymentGateway interface {
	Sale(ctx context.Context, req *models.SaleRequest) (*models.SaleResult, error)
	BoardCard(ctx context.Context, creds models.MerchantCredentials, token string) (*models.BoardCardResult, error)
}

// CredentialsProvider resolves merchant credentials for one attempt.
type CredentialsProvider interface {
	Resolve(ctx context.Context, processorID int64) (models.MerchantCredentials, error)
}
