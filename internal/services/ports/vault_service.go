package ports

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
)

// BoardRequest contains parameters for boarding a card into the vault
type BoardRequest struct {
	RecurSeriesID int64 // Required, must be positive
	ContactID     int64
	ProcessorID   int64
	Credentials   models.MerchantCredentials
	PaymentToken  string // Token the sale was paid with, empty for a keyed card
	SaleToken     string // Transaction token returned by an approved Sale
	MaskedAccount string // Last 4 only
}

// VaultManager boards cards and stores the resulting vault tokens
type VaultManager interface {
	// BoardCard converts a sale token into a vault token and stores it.
	// Returns VAULT_TOKEN_EXISTS without calling the gateway when the payment
	// token, the sale token or the series is already boarded.
	BoardCard(ctx context.Context, req BoardRequest) (*models.VaultTokenRecord, error)

	// PersistIfNew stores a boarded token unless one exists for the token or series
	PersistIfNew(ctx context.Context, record *models.VaultTokenRecord) (*models.VaultTokenRecord, error)

	// TokenForSeries returns the vault token boarded for a recurring series
	TokenForSeries(ctx context.Context, recurSeriesID int64) (string, error)
}
