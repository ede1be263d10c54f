package merchantware

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	httpclient "github.com/kevin07696/tsys-connector/pkg/http"
	"go.uber.org/zap"
)

// DefaultEndpoint is the Merchantware v4.5 credit service
const DefaultEndpoint = "https://ps1.merchantware.net/Merchantware/ws/RetailTransaction/v45/Credit.asmx"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// ClientConfig configures the SOAP transport
type ClientConfig struct {
	Endpoint       string
	ConnectTimeout time.Duration
	Timeout        time.Duration  // total, including the response body
	RootCAs        *x509.CertPool // extra trust anchors; verification is never disabled
	CircuitBreaker CircuitBreakerConfig
}

// DefaultClientConfig returns production settings
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:       DefaultEndpoint,
		ConnectTimeout: 20 * time.Second,
		Timeout:        20 * time.Second,
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// Client posts SOAP envelopes to Merchantware and classifies transport failures.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	breaker    *CircuitBreaker
	logger     *zap.Logger
}

// NewClient validates the config and builds the transport
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse merchantware endpoint: %w", err)
	}
	if endpoint.Scheme != "https" || endpoint.Host == "" {
		return nil, fmt.Errorf("merchantware endpoint must be an https URL, got %q", cfg.Endpoint)
	}
	if cfg.ConnectTimeout <= 0 || cfg.Timeout <= 0 {
		return nil, fmt.Errorf("merchantware timeouts must be positive")
	}

	transportCfg := httpclient.MerchantwareClientConfig(cfg.ConnectTimeout)
	transportCfg.RootCAs = cfg.RootCAs

	breaker := NewCircuitBreaker(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to CircuitState) {
		circuitBreakerState.Set(float64(to))
		logger.Warn("Merchantware circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})

	return &Client{
		config:     cfg,
		httpClient: httpclient.NewHTTPClient(transportCfg, cfg.Timeout),
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// Send posts one envelope and returns the raw response body.
// Transport failures, gateway 502/503/504 and an open breaker all surface as
// GATEWAY_UNREACHABLE. A 500 is returned as a body because it carries the SOAP Fault.
func (c *Client) Send(ctx context.Context, action, envelope string) ([]byte, error) {
	var body []byte

	err := c.breaker.Call(func() error {
		var postErr error
		body, postErr = c.post(ctx, action, envelope)
		return postErr
	}, domain.IsRetryable)

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnreachable, "merchantware temporarily unavailable", err)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, action, envelope string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, strings.NewReader(envelope))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "build merchantware request", err)
	}
	req.ContentLength = int64(len(envelope))
	req.Header.Set("Content-Type", `text/xml; charset=utf-8`)
	req.Header.Set("Accept", "text/xml")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("SOAPAction", action)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Merchantware request failed",
			zap.String("action", action),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnreachable, "post to merchantware", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayUnreachable, "read merchantware response", err)
	}

	c.logger.Debug("Merchantware responded",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusInternalServerError:
		return body, nil
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayUnreachable,
			fmt.Sprintf("merchantware returned HTTP %d", resp.StatusCode))
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayProtocol,
			fmt.Sprintf("merchantware returned unexpected HTTP %d", resp.StatusCode))
	}
}

// BreakerState exposes the breaker position for health checks
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}
