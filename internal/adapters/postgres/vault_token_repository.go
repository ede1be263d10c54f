package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
)

const (
	existsByTokenSQL = `SELECT EXISTS (SELECT 1 FROM tsys_vault_tokens WHERE vault_token = $1)`

	getByRecurSeriesSQL = `
SELECT id, vault_token, recur_id, contact_id, payment_processor_id, created_at
FROM tsys_vault_tokens
WHERE recur_id = $1`

	// ON CONFLICT without a target covers both the token and the series constraint.
	insertIfNewSQL = `
INSERT INTO tsys_vault_tokens (vault_token, recur_id, contact_id, payment_processor_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING
RETURNING id, created_at`

	// One 64-bit key per series; recur_id is BIGINT so it cannot be cast to int4.
	lockRecurSeriesSQL = `SELECT pg_advisory_xact_lock(hashtextextended('tsys_vault_tokens:' || $1::bigint::text, 0))`
)

// VaultTokenRepository implements ports.VaultTokenRepository with hand-written pgx queries
type VaultTokenRepository struct {
	db ports.DBPort
}

var _ ports.VaultTokenRepository = (*VaultTokenRepository)(nil)

// NewVaultTokenRepository creates a new vault token repository
func NewVaultTokenRepository(db ports.DBPort) *VaultTokenRepository {
	return &VaultTokenRepository{db: db}
}

func (r *VaultTokenRepository) conn(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// ExistsByToken reports whether the vault token is already stored
func (r *VaultTokenRepository) ExistsByToken(ctx context.Context, db ports.DBTX, token string) (bool, error) {
	var exists bool
	if err := r.conn(db).QueryRow(ctx, existsByTokenSQL, token).Scan(&exists); err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "check vault token", err)
	}
	return exists, nil
}

// GetByRecurSeries returns the token boarded for a series, or VAULT_TOKEN_NOT_FOUND.
func (r *VaultTokenRepository) GetByRecurSeries(ctx context.Context, db ports.DBTX, recurSeriesID int64) (*models.VaultTokenRecord, error) {
	var (
		record    models.VaultTokenRecord
		contactID pgtype.Int8
		procID    pgtype.Int8
	)
	err := r.conn(db).QueryRow(ctx, getByRecurSeriesSQL, recurSeriesID).Scan(
		&record.ID,
		&record.Token,
		&record.RecurSeriesID,
		&contactID,
		&procID,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVaultTokenNotFound.WithDetail("recur_id", recurSeriesID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get vault token by series", err)
	}

	record.ContactID = int8Value(contactID)
	record.PaymentProcessorID = int8Value(procID)
	return &record, nil
}

// InsertIfNew stores the record unless its token or series is already present.
// On insert the record's ID and CreatedAt are filled in.
func (r *VaultTokenRepository) InsertIfNew(ctx context.Context, db ports.DBTX, record *models.VaultTokenRecord) (bool, error) {
	if record.Token == "" || record.RecurSeriesID <= 0 {
		return false, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "vault token and recur series are required")
	}

	err := r.conn(db).QueryRow(ctx, insertIfNewSQL,
		record.Token,
		record.RecurSeriesID,
		nullInt8(record.ContactID),
		nullInt8(record.PaymentProcessorID),
	).Scan(&record.ID, &record.CreatedAt)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case isUniqueViolation(err):
		return false, nil
	case err != nil:
		return false, domain.WrapError(domain.ErrorCodeVaultPersistence, "insert vault token", err)
	}
	return true, nil
}

// LockRecurSeries takes a transaction-scoped advisory lock so that concurrent
// processes board at most one card per series. tx must be a transaction.
func (r *VaultTokenRepository) LockRecurSeries(ctx context.Context, tx ports.DBTX, recurSeriesID int64) error {
	if tx == nil {
		return fmt.Errorf("lock recur series %d: a transaction is required", recurSeriesID)
	}
	if _, err := tx.Exec(ctx, lockRecurSeriesSQL, recurSeriesID); err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "lock recur series", err)
	}
	return nil
}
