package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{domain.ErrUnsupportedCurrency, http.StatusBadRequest},
		{domain.ErrMissingCardInfo, http.StatusBadRequest},
		{domain.ErrConfiguration, http.StatusUnprocessableEntity},
		{domain.ErrCredentialsMissing, http.StatusUnprocessableEntity},
		{domain.ErrProcessorNotFound.WithDetail("processor_id", 3), http.StatusNotFound},
		{domain.ErrVaultTokenNotFound, http.StatusNotFound},
		{domain.ErrGatewayDeclined, http.StatusPaymentRequired},
		{domain.ErrVaultTokenExists, http.StatusConflict},
		{domain.WrapError(domain.ErrorCodeGatewayUnreachable, "post", errors.New("reset")), http.StatusBadGateway},
		{domain.ErrGatewayProtocol, http.StatusBadGateway},
		{domain.ErrHostAPI, http.StatusBadGateway},
		{domain.ErrChargeNotRecorded.WithDetail("trxn_id", "T1"), http.StatusBadGateway},
		{fmt.Errorf("charge: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestDomainError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	DomainError(rec, zap.NewNop(), domain.WrapError(domain.ErrorCodeDatabaseError, "insert", errors.New("pq: password authentication failed")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_DATABASE_ERROR", body.Code)
}

func TestDomainError_ClientErrorsCarryMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	DomainError(rec, zap.NewNop(), domain.ErrUnsupportedCurrency)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_UNSUPPORTED_CURRENCY", body.Code)
	assert.Equal(t, "Tsys only supports USD; this transaction was not sent.", body.Error)
	assert.False(t, body.Success)
}
