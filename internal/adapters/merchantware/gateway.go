package merchantware

import (
	"context"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"go.uber.org/zap"
)

// Sender delivers one SOAP envelope. *Client is the production implementation.
type Sender interface {
	Send(ctx context.Context, action, envelope string) ([]byte, error)
}

// Gateway implements ports.PaymentGateway over the Merchantware SOAP API.
type Gateway struct {
	sender Sender
	logger *zap.Logger
}

var _ ports.PaymentGateway = (*Gateway)(nil)

// NewGateway creates a gateway on top of a sender
func NewGateway(sender Sender, logger *zap.Logger) *Gateway {
	return &Gateway{sender: sender, logger: logger}
}

// Sale charges a vault token or keyed card.
func (g *Gateway) Sale(ctx context.Context, req *models.SaleRequest) (*models.SaleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid sale request", err)
	}

	envelope, err := BuildSaleEnvelope(req.Credentials, req.Instrument, req.Amount, req.InvoiceNumber)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "encode sale request", err)
	}

	start := time.Now()
	raw, err := g.sender.Send(ctx, ActionSale, envelope)
	gatewayRequestDuration.WithLabelValues("sale").Observe(time.Since(start).Seconds())
	if err != nil {
		gatewayRequestsTotal.WithLabelValues("sale", outcomeForError(err)).Inc()
		return nil, err
	}

	result, err := ParseSaleResponse(raw)
	if err != nil {
		gatewayRequestsTotal.WithLabelValues("sale", "protocol_error").Inc()
		g.logger.Error("Unreadable Merchantware sale response",
			zap.String("invoice_number", req.InvoiceNumber),
			zap.Error(err),
		)
		return nil, err
	}
	gatewayRequestsTotal.WithLabelValues("sale", string(result.ApprovalStatus)).Inc()

	fields := []zap.Field{
		zap.String("invoice_number", req.InvoiceNumber),
		zap.String("approval_status", string(result.ApprovalStatus)),
		zap.Bool("vault", req.Instrument.IsVault()),
		zap.String("last4", result.MaskedCardNumber),
	}
	switch result.ApprovalStatus {
	case models.ApprovalApproved:
		g.logger.Info("Merchantware sale approved", fields...)
	case models.ApprovalDeclined:
		g.logger.Info("Merchantware sale declined", append(fields, zap.String("status_text", result.StatusText))...)
	default:
		g.logger.Warn("Merchantware sale failed", append(fields,
			zap.String("error_message", result.ErrorMessage),
			zap.String("fault", result.RawFault),
		)...)
	}

	return result, nil
}

// BoardCard exchanges a sale token for a reusable vault token.
func (g *Gateway) BoardCard(ctx context.Context, creds models.MerchantCredentials, token string) (*models.BoardCardResult, error) {
	envelope, err := BuildBoardCardEnvelope(creds, token)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "encode board card request", err)
	}

	start := time.Now()
	raw, err := g.sender.Send(ctx, ActionBoardCard, envelope)
	gatewayRequestDuration.WithLabelValues("board_card").Observe(time.Since(start).Seconds())
	if err != nil {
		gatewayRequestsTotal.WithLabelValues("board_card", outcomeForError(err)).Inc()
		return nil, err
	}

	result, err := ParseBoardCardResponse(raw)
	if err != nil {
		gatewayRequestsTotal.WithLabelValues("board_card", "protocol_error").Inc()
		return nil, err
	}

	if !result.Succeeded() {
		gatewayRequestsTotal.WithLabelValues("board_card", "error").Inc()
		g.logger.Warn("Merchantware board card returned no vault token",
			zap.String("error_message", result.ErrorMessage),
		)
		return result, nil
	}

	gatewayRequestsTotal.WithLabelValues("board_card", "boarded").Inc()
	g.logger.Info("Merchantware card boarded")
	return result, nil
}

func outcomeForError(err error) string {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeGatewayUnreachable:
		return "unreachable"
	case domain.ErrorCodeGatewayProtocol:
		return "protocol_error"
	default:
		return "error"
	}
}
