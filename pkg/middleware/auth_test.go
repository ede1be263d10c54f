package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBearerAuth(t *testing.T) {
	handler := BearerAuth("s3cret", zap.NewNop())(okHandler())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer s3cret", http.StatusOK},
		{"case insensitive scheme", "bearer s3cret", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"basic auth", "Basic czNjcmV0", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestBearerAuth_DisabledWithoutToken(t *testing.T) {
	handler := BearerAuth("", zap.NewNop())(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenMatches(t *testing.T) {
	assert.True(t, TokenMatches("abc", "abc"))
	assert.False(t, TokenMatches("abc", "abd"))
	assert.False(t, TokenMatches("", ""))
	assert.False(t, TokenMatches("abc", ""))
}
