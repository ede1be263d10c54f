// Package respond writes JSON responses and maps domain errors onto HTTP statuses.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"go.uber.org/zap"
)

// ErrorBody is the JSON error shape of every endpoint
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// JSON writes v with status
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Error writes a plain error body
func Error(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, ErrorBody{Success: false, Error: message})
}

// DomainError writes err with the status StatusFor picks. Internal failures
// are reported without detail.
func DomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{Success: false, Code: string(domain.GetErrorCode(err))}

	var de *domain.DomainError
	if status < http.StatusInternalServerError && errors.As(err, &de) {
		body.Error = de.Message
	} else {
		body.Error = http.StatusText(status)
	}
	if body.Code == "" {
		body.Code = string(domain.ErrorCodeInternalError)
	}
	JSON(w, logger, status, body)
}

// StatusFor maps an error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, domain.ErrProcessorNotFound), errors.Is(err, domain.ErrVaultTokenNotFound):
		return http.StatusNotFound
	case domain.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrVaultTokenExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnreachable),
		errors.Is(err, domain.ErrGatewayProtocol),
		errors.Is(err, domain.ErrBoardCardFailed),
		errors.Is(err, domain.ErrHostAPI),
		errors.Is(err, domain.ErrChargeNotRecorded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
