package ports

import (
	"context"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
)

// VaultTokenRepository stores boarded vault tokens.
// Pass a nil DBTX to run against the pool.
type VaultTokenRepository interface {
	ExistsByToken(ctx context.Context, db DBTX, token string) (bool, error)
	GetByRecurSeries(ctx context.Context, db DBTX, recurSeriesID int64) (*models.VaultTokenRecord, error)
	// InsertIfNew returns false when a record for the token or series already exists.
	InsertIfNew(ctx context.Context, db DBTX, record *models.VaultTokenRecord) (bool, error)
	// LockRecurSeries serializes boarding for one series until tx ends.
	LockRecurSeries(ctx context.Context, tx DBTX, recurSeriesID int64) error
}
