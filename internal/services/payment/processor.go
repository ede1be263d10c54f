package payment

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	serviceports "github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/kevin07696/tsys-connector/internal/util"
)

// SupportedCurrency is the only currency the Merchantware account settles in
const SupportedCurrency = "USD"

// Processor runs one payment attempt at a time through the gateway and
// interprets the outcome for the host ledger. It holds no credentials:
// they are resolved per attempt.
type Processor struct {
	gateway     ports.PaymentGateway
	credentials ports.CredentialsProvider
	host        ports.HostPlatform
	vault       serviceports.VaultManager
	logger      ports.Logger
}

var _ serviceports.PaymentProcessor = (*Processor)(nil)

// NewProcessor creates a new payment processor
func NewProcessor(
	gateway ports.PaymentGateway,
	credentials ports.CredentialsProvider,
	host ports.HostPlatform,
	vault serviceports.VaultManager,
	logger ports.Logger,
) *Processor {
	return &Processor{
		gateway:     gateway,
		credentials: credentials,
		host:        host,
		vault:       vault,
		logger:      logger,
	}
}

// Process runs a single attempt. Declines are returned as an outcome with a
// nil error. Configuration and validation failures, and gateway transport or
// protocol failures, return an Error outcome together with the cause.
// Nothing is retried here.
func (p *Processor) Process(ctx context.Context, req serviceports.PaymentAttempt) (*models.PaymentOutcome, error) {
	a := newAttempt()
	outcome := &models.PaymentOutcome{State: a.state}

	creds, err := p.credentials.Resolve(ctx, req.ProcessorID)
	if err != nil {
		return p.fail(ctx, a, outcome, req, err)
	}
	p.advance(a, outcome, models.StateCredentialsResolved, req)

	currency, err := p.effectiveCurrency(ctx, req)
	if err != nil {
		return p.fail(ctx, a, outcome, req, err)
	}
	if currency != SupportedCurrency {
		return p.fail(ctx, a, outcome, req, domain.ErrUnsupportedCurrency.WithDetail("currency", currency))
	}
	p.advance(a, outcome, models.StateCurrencyValidated, req)

	saleReq, err := p.composeSale(req, creds)
	if err != nil {
		return p.fail(ctx, a, outcome, req, err)
	}
	outcome.InvoiceNumber = saleReq.InvoiceNumber
	p.advance(a, outcome, models.StateRequestComposed, req)

	p.advance(a, outcome, models.StateSent, req)
	result, err := p.gateway.Sale(ctx, saleReq)
	if err != nil {
		return p.fail(ctx, a, outcome, req, err)
	}

	if !result.IsApproved() {
		return p.declined(ctx, a, outcome, req, result)
	}
	return p.approved(ctx, a, outcome, req, creds, result), nil
}

// effectiveCurrency picks the per-call override, then the form currency,
// then the host default
func (p *Processor) effectiveCurrency(ctx context.Context, req serviceports.PaymentAttempt) (string, error) {
	if req.CurrencyOverride != "" {
		return req.CurrencyOverride, nil
	}
	if req.FormCurrency != "" {
		return req.FormCurrency, nil
	}
	currency, err := p.host.DefaultCurrency(ctx)
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeHostAPI, "load default currency", err)
	}
	return currency, nil
}

func (p *Processor) composeSale(req serviceports.PaymentAttempt, creds models.MerchantCredentials) (*models.SaleRequest, error) {
	var instrument models.PaymentInstrument
	switch {
	case models.UsableToken(req.PaymentToken):
		instrument = models.VaultInstrument(req.PaymentToken)
	case req.Card.Complete():
		instrument = models.CardInstrument(*req.Card)
	default:
		return nil, domain.ErrMissingCardInfo
	}

	if !req.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", req.Amount.String())
	}

	invoice, _, err := util.NewInvoiceNumber()
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "generate invoice number", err)
	}

	return &models.SaleRequest{
		Credentials:   creds,
		Instrument:    instrument,
		Amount:        req.Amount.Round(2),
		InvoiceNumber: invoice,
	}, nil
}

func (p *Processor) approved(
	ctx context.Context,
	a *attempt,
	outcome *models.PaymentOutcome,
	req serviceports.PaymentAttempt,
	creds models.MerchantCredentials,
	result *models.SaleResult,
) *models.PaymentOutcome {
	p.advance(a, outcome, models.StateApproved, req)

	outcome.Status = models.ContributionCompleted
	outcome.AuthorizationCode = result.AuthorizationCode
	outcome.MaskedCardNumber = result.MaskedCardNumber
	outcome.CardTypeCode = result.CardTypeCode
	outcome.VaultToken = result.VaultToken
	outcome.TrxnID = result.VaultToken
	if outcome.TrxnID == "" {
		outcome.TrxnID = outcome.InvoiceNumber
	}

	p.resolveStatusID(ctx, outcome)
	p.resolveCardType(ctx, outcome)

	if req.IsRecur && req.RecurSeriesID > 0 && result.VaultToken != "" {
		p.board(ctx, outcome, req, creds)
	}

	p.logger.Info("Payment approved",
		ports.Int64("payment_processor_id", req.ProcessorID),
		ports.String("invoice_number", outcome.InvoiceNumber),
		ports.String("auth_code", outcome.AuthorizationCode),
		ports.String("last4", outcome.MaskedCardNumber))
	return outcome
}

func (p *Processor) declined(
	ctx context.Context,
	a *attempt,
	outcome *models.PaymentOutcome,
	req serviceports.PaymentAttempt,
	result *models.SaleResult,
) (*models.PaymentOutcome, error) {
	if result.ApprovalStatus == models.ApprovalDeclined {
		p.advance(a, outcome, models.StateDeclined, req)
	} else {
		p.advance(a, outcome, models.StateError, req)
	}

	outcome.Status = models.ContributionFailed
	outcome.Message = result.ErrorMessage
	if outcome.Message == "" {
		outcome.Message = result.StatusText
	}
	p.resolveStatusID(ctx, outcome)

	fields := []ports.Field{
		ports.Int64("payment_processor_id", req.ProcessorID),
		ports.String("invoice_number", outcome.InvoiceNumber),
		ports.String("approval_status", result.StatusText),
	}
	if result.RawFault != "" {
		fields = append(fields, ports.String("fault", result.RawFault))
	}
	p.logger.Warn("Payment not approved", fields...)
	return outcome, nil
}

// fail moves the attempt to Error and returns err alongside the outcome
func (p *Processor) fail(
	ctx context.Context,
	a *attempt,
	outcome *models.PaymentOutcome,
	req serviceports.PaymentAttempt,
	err error,
) (*models.PaymentOutcome, error) {
	from := a.state
	p.advance(a, outcome, models.StateError, req)

	outcome.Status = models.ContributionFailed
	outcome.Message = userMessage(err)

	// The host already failed or lacks the processor; skip the extra lookup.
	if !domain.IsConfigurationError(err) && !errors.Is(err, domain.ErrHostAPI) {
		p.resolveStatusID(ctx, outcome)
	}

	p.logger.Error("Payment attempt failed",
		ports.Int64("payment_processor_id", req.ProcessorID),
		ports.String("failed_after", string(from)),
		ports.String("error_code", string(domain.GetErrorCode(err))),
		ports.Bool("retryable", domain.IsRetryable(err)),
		ports.Err(err))
	return outcome, err
}

func (p *Processor) advance(a *attempt, outcome *models.PaymentOutcome, to models.AttemptState, req serviceports.PaymentAttempt) {
	if err := a.advance(to); err != nil {
		// Only reachable through a programming error in Process.
		p.logger.Error("Invalid payment state transition", ports.Err(err))
		return
	}
	outcome.State = to
	if to == models.StateSent {
		outcome.Sent = true
	}
	p.logger.Debug("Payment attempt transition",
		ports.Int64("payment_processor_id", req.ProcessorID),
		ports.String("state", string(to)))
}

func (p *Processor) resolveStatusID(ctx context.Context, outcome *models.PaymentOutcome) {
	id, err := p.host.ContributionStatusID(ctx, outcome.Status)
	if err != nil {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("contribution status %q could not be resolved: %v", outcome.Status, err))
		p.logger.Warn("Failed to resolve contribution status id",
			ports.String("status", string(outcome.Status)),
			ports.Err(err))
		return
	}
	outcome.StatusID = id
}

// resolveCardType maps the gateway card code onto the host option value.
// Unknown codes leave CardTypeID nil.
func (p *Processor) resolveCardType(ctx context.Context, outcome *models.PaymentOutcome) {
	if outcome.CardTypeCode == nil {
		return
	}
	name, ok := models.CardTypeName(*outcome.CardTypeCode)
	if !ok {
		p.logger.Debug("Unmapped card type code", ports.Int("card_type_code", *outcome.CardTypeCode))
		return
	}
	id, err := p.host.CardTypeOptionValue(ctx, name)
	if err != nil {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("card type %s could not be resolved: %v", name, err))
		p.logger.Warn("Failed to resolve card type option value",
			ports.String("card_type", name),
			ports.Err(err))
		return
	}
	outcome.CardTypeID = id
}

// board stores the vault token for a recurring series. Failures become
// warnings; the sale stays approved.
func (p *Processor) board(ctx context.Context, outcome *models.PaymentOutcome, req serviceports.PaymentAttempt, creds models.MerchantCredentials) {
	record, err := p.vault.BoardCard(ctx, serviceports.BoardRequest{
		RecurSeriesID: req.RecurSeriesID,
		ContactID:     req.ContactID,
		ProcessorID:   req.ProcessorID,
		Credentials:   creds,
		PaymentToken:  req.PaymentToken,
		SaleToken:     outcome.VaultToken,
		MaskedAccount: outcome.MaskedCardNumber,
	})
	switch {
	case err == nil:
		outcome.BoardedTokenID = &record.ID
	case errors.Is(err, domain.ErrVaultTokenExists):
		p.logger.Debug("Card already boarded for series", ports.Int64("recur_id", req.RecurSeriesID))
	default:
		outcome.Warnings = append(outcome.Warnings, "card boarding failed: "+userMessage(err))
		p.logger.Error("Card boarding failed after approved sale",
			ports.Int64("recur_id", req.RecurSeriesID),
			ports.String("invoice_number", outcome.InvoiceNumber),
			ports.Err(err))
	}
}

// DoPayment implements serviceports.PaymentProcessor for the host's
// parameter map. The input map is not modified.
func (p *Processor) DoPayment(ctx context.Context, params map[string]any) (map[string]any, error) {
	req, err := attemptFromParams(params)
	if err != nil {
		return nil, err
	}

	outcome, err := p.Process(ctx, req)

	out := maps.Clone(params)
	delete(out, ParamCardNumber)
	delete(out, ParamCVV)
	if outcome != nil {
		out[ParamPaymentStatusID] = outcome.StatusID
		if outcome.Completed() {
			out[ParamTrxnID] = outcome.TrxnID
			out[ParamPanTruncation] = outcome.MaskedCardNumber
			if outcome.CardTypeID != nil {
				out[ParamCardTypeID] = *outcome.CardTypeID
			}
			if outcome.VaultToken != "" {
				out[ParamToken] = outcome.VaultToken
			}
		}
	}
	return out, err
}

// userMessage returns the host-facing text for err
func userMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
