package authorization

import (
	"context"
	"errors"
	"strings"

	adapterports "github.com/kevin07696/tsys-connector/internal/adapters/ports"
	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// SecretRefPrefix marks a merchant key stored in the secret manager instead of the host.
const SecretRefPrefix = "secret://"

var credentialResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "merchant_credential_resolutions_total",
	Help: "Merchant credential resolutions by outcome",
}, []string{"outcome"}) // ok, not_found, host_error, misconfigured, secret_error

// MerchantCredentialResolver builds Merchantware credentials from the host
// processor record. Nothing is cached: every attempt reads fresh settings.
type MerchantCredentialResolver struct {
	host          ports.HostPlatform
	secretManager adapterports.SecretManagerAdapter
	logger        *zap.Logger
}

var _ ports.CredentialsProvider = (*MerchantCredentialResolver)(nil)

// NewMerchantCredentialResolver creates a resolver. secretManager may be nil
// when no processor stores its key as a secret reference.
func NewMerchantCredentialResolver(
	host ports.HostPlatform,
	secretManager adapterports.SecretManagerAdapter,
	logger *zap.Logger,
) *MerchantCredentialResolver {
	return &MerchantCredentialResolver{
		host:          host,
		secretManager: secretManager,
		logger:        logger,
	}
}

// Resolve returns complete credentials, a configuration error, or the host
// error that prevented reading the processor. The returned value must not be
// logged or retained past the attempt.
func (r *MerchantCredentialResolver) Resolve(ctx context.Context, processorID int64) (models.MerchantCredentials, error) {
	settings, err := r.host.GetProcessorSettings(ctx, processorID)
	if err != nil {
		err = settingsError(processorID, err)
		if domain.IsConfigurationError(err) {
			credentialResolutions.WithLabelValues("not_found").Inc()
		} else {
			credentialResolutions.WithLabelValues("host_error").Inc()
		}
		return models.MerchantCredentials{}, err
	}

	creds := settings.Credentials()
	if ref, ok := strings.CutPrefix(creds.MerchantKey, SecretRefPrefix); ok {
		key, err := r.resolveSecret(ctx, processorID, ref)
		if err != nil {
			credentialResolutions.WithLabelValues("secret_error").Inc()
			return models.MerchantCredentials{}, err
		}
		creds.MerchantKey = key
	}

	if !creds.Complete() {
		credentialResolutions.WithLabelValues("misconfigured").Inc()
		r.logger.Warn("Payment processor has incomplete Merchantware credentials",
			zap.Int64("payment_processor_id", processorID),
			zap.Bool("merchant_name_set", creds.MerchantName != ""),
			zap.Bool("merchant_site_id_set", creds.MerchantSiteID != ""),
			zap.Bool("merchant_key_set", creds.MerchantKey != ""),
		)
		return models.MerchantCredentials{}, domain.ErrCredentialsMissing.WithDetail("payment_processor_id", processorID)
	}

	credentialResolutions.WithLabelValues("ok").Inc()
	return creds, nil
}

func (r *MerchantCredentialResolver) resolveSecret(ctx context.Context, processorID int64, path string) (string, error) {
	if r.secretManager == nil {
		return "", domain.NewDomainError(domain.ErrorCodeSecretUnavailable, "merchant key is a secret reference but no secret manager is configured").
			WithDetail("payment_processor_id", processorID)
	}

	secret, err := r.secretManager.GetSecret(ctx, path)
	if err != nil {
		r.logger.Error("Failed to resolve merchant key",
			zap.Int64("payment_processor_id", processorID),
			zap.String("secret_path", path),
			zap.Error(err),
		)
		return "", domain.WrapError(domain.ErrorCodeSecretUnavailable, "resolve merchant key", err).
			WithDetail("payment_processor_id", processorID)
	}
	return strings.TrimSpace(secret.Value), nil
}

// CheckConfig validates the processor record without resolving secrets.
// All problems are reported together in the error's "problems" detail.
func (r *MerchantCredentialResolver) CheckConfig(ctx context.Context, processorID int64) error {
	settings, err := r.host.GetProcessorSettings(ctx, processorID)
	if err != nil {
		return settingsError(processorID, err)
	}

	if problems := settings.CheckConfig(); len(problems) > 0 {
		return domain.NewDomainError(domain.ErrorCodeConfiguration, strings.Join(problems, " ")).
			WithDetail("payment_processor_id", processorID).
			WithDetail("problems", problems)
	}
	return nil
}

// PublishableKey returns the key handed to the client-side tokenization widget.
func (r *MerchantCredentialResolver) PublishableKey(ctx context.Context, processorID int64) (string, error) {
	settings, err := r.host.GetProcessorSettings(ctx, processorID)
	if err != nil {
		return "", settingsError(processorID, err)
	}

	key := strings.TrimSpace(settings.Password)
	if key == "" {
		return "", domain.NewDomainError(domain.ErrorCodeConfiguration, `The "Publishable Key" (password) is not set in the Tsys payment processor settings.`).
			WithDetail("payment_processor_id", processorID)
	}
	return key, nil
}

// settingsError keeps a missing processor apart from a host that could not be
// read. Domain errors from the host client pass through unchanged.
func settingsError(processorID int64, err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return domain.WrapError(domain.ErrorCodeHostAPI, "load payment processor settings", err).
		WithDetail("payment_processor_id", processorID)
}
