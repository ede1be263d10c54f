package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var boardings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vault_card_boardings_total",
	Help: "Card boarding attempts by outcome",
}, []string{"outcome"}) // boarded, exists, gateway_failed, persist_failed

// Manager boards cards and keeps at most one vault token per token and per
// recurring series. Boarding for a series is serialized in-process by a
// keyed mutex and across processes by an advisory lock plus unique constraints.
type Manager struct {
	db      ports.DBPort
	repo    ports.VaultTokenRepository
	gateway ports.PaymentGateway
	host    ports.HostPlatform
	logger  ports.Logger
	locks   *keyedMutex
}

var _ serviceports.VaultManager = (*Manager)(nil)

// NewManager creates a vault manager. host may be nil, in which case no
// host-side payment token is created after boarding.
func NewManager(
	db ports.DBPort,
	repo ports.VaultTokenRepository,
	gateway ports.PaymentGateway,
	host ports.HostPlatform,
	logger ports.Logger,
) *Manager {
	return &Manager{
		db:      db,
		repo:    repo,
		gateway: gateway,
		host:    host,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// BoardCard implements serviceports.VaultManager
func (m *Manager) BoardCard(ctx context.Context, req serviceports.BoardRequest) (*models.VaultTokenRecord, error) {
	if req.RecurSeriesID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "recurring series id is required for card boarding").
			WithDetail("recur_id", req.RecurSeriesID)
	}
	if req.SaleToken == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "sale token is required for card boarding")
	}

	unlock := m.locks.Lock(req.RecurSeriesID)
	defer unlock()

	if err := m.checkNotBoarded(ctx, req); err != nil {
		return nil, err
	}

	result, err := m.gateway.BoardCard(ctx, req.Credentials, req.SaleToken)
	if err != nil {
		boardings.WithLabelValues("gateway_failed").Inc()
		m.logger.Error("BoardCard request failed",
			ports.Int64("recur_id", req.RecurSeriesID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeBoardCardFailed, "board card", err).
			WithDetail("recur_id", req.RecurSeriesID)
	}
	if !result.Succeeded() {
		boardings.WithLabelValues("gateway_failed").Inc()
		m.logger.Error("BoardCard returned no vault token",
			ports.Int64("recur_id", req.RecurSeriesID),
			ports.String("gateway_message", result.ErrorMessage))
		return nil, domain.ErrBoardCardFailed.
			WithDetail("recur_id", req.RecurSeriesID).
			WithDetail("gateway_message", result.ErrorMessage)
	}

	record, err := m.PersistIfNew(ctx, &models.VaultTokenRecord{
		Token:              result.VaultToken,
		RecurSeriesID:      req.RecurSeriesID,
		ContactID:          req.ContactID,
		PaymentProcessorID: req.ProcessorID,
	})
	if err != nil {
		return nil, err
	}

	m.createHostToken(ctx, req, record)
	return record, nil
}

// checkNotBoarded rejects a request whose card is already in the vault,
// either because it was paid with a stored token or because its series has one.
func (m *Manager) checkNotBoarded(ctx context.Context, req serviceports.BoardRequest) error {
	for _, token := range []string{req.PaymentToken, req.SaleToken} {
		if token == "" {
			continue
		}
		exists, err := m.repo.ExistsByToken(ctx, nil, token)
		if err != nil {
			return domain.WrapError(domain.ErrorCodeVaultPersistence, "check existing vault token", err)
		}
		if exists {
			boardings.WithLabelValues("exists").Inc()
			return domain.ErrVaultTokenExists.WithDetail("recur_id", req.RecurSeriesID)
		}
	}

	_, err := m.repo.GetByRecurSeries(ctx, nil, req.RecurSeriesID)
	switch {
	case err == nil:
		boardings.WithLabelValues("exists").Inc()
		return domain.ErrVaultTokenExists.WithDetail("recur_id", req.RecurSeriesID)
	case errors.Is(err, domain.ErrVaultTokenNotFound):
		return nil
	default:
		return domain.WrapError(domain.ErrorCodeVaultPersistence, "check existing series token", err)
	}
}

// PersistIfNew implements serviceports.VaultManager. Duplicates are reported
// as VAULT_TOKEN_EXISTS, any other failure as VAULT_PERSISTENCE_ERROR.
func (m *Manager) PersistIfNew(ctx context.Context, record *models.VaultTokenRecord) (*models.VaultTokenRecord, error) {
	var inserted bool
	err := m.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := m.repo.LockRecurSeries(ctx, tx, record.RecurSeriesID); err != nil {
			return err
		}
		ok, err := m.repo.InsertIfNew(ctx, tx, record)
		inserted = ok
		return err
	})
	if err != nil {
		boardings.WithLabelValues("persist_failed").Inc()
		m.logger.Error("Vault token boarded but not saved",
			ports.Int64("recur_id", record.RecurSeriesID),
			ports.String("token_prefix", tokenPrefix(record.Token)),
			ports.Err(err))
		if domain.IsValidationError(err) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeVaultPersistence, "persist vault token", err).
			WithDetail("recur_id", record.RecurSeriesID)
	}
	if !inserted {
		boardings.WithLabelValues("exists").Inc()
		return nil, domain.ErrVaultTokenExists.WithDetail("recur_id", record.RecurSeriesID)
	}

	boardings.WithLabelValues("boarded").Inc()
	m.logger.Info("Vault token stored",
		ports.Int64("recur_id", record.RecurSeriesID),
		ports.Int64("vault_token_id", record.ID),
		ports.String("token_prefix", tokenPrefix(record.Token)))
	return record, nil
}

// TokenForSeries implements serviceports.VaultManager
func (m *Manager) TokenForSeries(ctx context.Context, recurSeriesID int64) (string, error) {
	record, err := m.repo.GetByRecurSeries(ctx, nil, recurSeriesID)
	if err != nil {
		return "", err
	}
	return record.Token, nil
}

// createHostToken mirrors the boarded token into the host. Failures are logged only.
func (m *Manager) createHostToken(ctx context.Context, req serviceports.BoardRequest, record *models.VaultTokenRecord) {
	if m.host == nil {
		return
	}
	id, err := m.host.CreatePaymentToken(ctx, &models.PaymentTokenRecord{
		ContactID:          req.ContactID,
		PaymentProcessorID: req.ProcessorID,
		Token:              record.Token,
		MaskedAccount:      req.MaskedAccount,
	})
	if err != nil {
		m.logger.Warn("Failed to create host payment token",
			ports.Int64("recur_id", record.RecurSeriesID),
			ports.Err(err))
		return
	}
	m.logger.Debug("Host payment token created",
		ports.Int64("recur_id", record.RecurSeriesID),
		ports.Int64("payment_token_id", id))
}

func tokenPrefix(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return fmt.Sprintf("%s****", token[:4])
}
