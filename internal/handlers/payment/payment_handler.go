package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/handlers/respond"
	paymentservice "github.com/kevin07696/tsys-connector/internal/services/payment"
	"github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"go.uber.org/zap"
)

// maxBodyBytes caps the payment form body
const maxBodyBytes = 64 << 10

// PublishableKeySource returns the key the card tokenization widget is initialised with
type PublishableKeySource interface {
	PublishableKey(ctx context.Context, processorID int64) (string, error)
}

// Handler exposes payment attempts to the host over HTTP
type Handler struct {
	processor ports.PaymentProcessor
	keys      PublishableKeySource
	timeouts  *resilience.TimeoutConfig
	logger    *zap.Logger
}

// NewHandler creates a new payment handler
func NewHandler(processor ports.PaymentProcessor, keys PublishableKeySource, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	return &Handler{
		processor: processor,
		keys:      keys,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// PaymentResponse wraps the host parameter map returned by DoPayment
type PaymentResponse struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DoPayment handles POST /api/v1/payments. The body is the host's parameter map.
// Declines come back as 200 with a failed payment_status_id in result.
func (h *Handler) DoPayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var params map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil || params == nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respond.Error(w, h.logger, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	ctx, cancel := h.timeouts.PaymentContext(r.Context())
	defer cancel()

	out, err := h.processor.DoPayment(ctx, params)
	if err != nil {
		status := respond.StatusFor(err)
		h.logger.Warn("Payment attempt failed",
			zap.String("code", string(domain.GetErrorCode(err))),
			zap.Int("status", status),
			zap.Error(err),
		)
		// Gateway and host messages are safe to show; other 5xx detail is not.
		message := http.StatusText(status)
		var de *domain.DomainError
		if errors.As(err, &de) && (status < http.StatusInternalServerError || status == http.StatusBadGateway) {
			message = de.Message
		}
		respond.JSON(w, h.logger, status, PaymentResponse{
			Success: false,
			Result:  out,
			Code:    string(domain.GetErrorCode(err)),
			Error:   message,
		})
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, PaymentResponse{Success: true, Result: out})
}

// PublicKeyResponse is returned by GET /api/v1/processors/{id}/public-key
type PublicKeyResponse struct {
	ProcessorID    int64  `json:"processor_id"`
	PublishableKey string `json:"publishable_key"`
}

// PublicKey handles GET /api/v1/processors/{id}/public-key
func (h *Handler) PublicKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, h.logger, http.StatusBadRequest, "processor id must be a positive integer")
		return
	}

	key, err := h.keys.PublishableKey(r.Context(), id)
	if err != nil {
		h.logger.Warn("Publishable key unavailable",
			zap.Int64("processor_id", id),
			zap.Error(err),
		)
		respond.DomainError(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, PublicKeyResponse{ProcessorID: id, PublishableKey: key})
}

// FormFields handles GET /api/v1/payments/form-fields
func (h *Handler) FormFields(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"fields": paymentservice.CreditCardFormFields(),
	})
}
