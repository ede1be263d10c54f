package civicrm

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	httpclient "github.com/kevin07696/tsys-connector/pkg/http"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// DefaultProcessorClassName is the host class name of Tsys payment processors.
const DefaultProcessorClassName = "Payment_Tsys"

// Config configures the host REST client
type Config struct {
	// Endpoint is the APIv3 REST URL, e.g. https://crm.example.org/civicrm/ajax/rest
	Endpoint string
	APIKey   string
	SiteKey  string
	Timeout  time.Duration
	// ReadRetries is how many extra attempts idempotent reads get on transport failures.
	ReadRetries int
	RootCAs     *x509.CertPool // extra trust anchors; verification is never disabled
	// ProcessorIDs restricts recurring runs to these processors. Empty means every
	// active processor of ProcessorClassName.
	ProcessorIDs       []int64
	ProcessorClassName string
}

// DefaultConfig returns production settings for endpoint
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:           endpoint,
		Timeout:            15 * time.Second,
		ReadRetries:        2,
		ProcessorClassName: DefaultProcessorClassName,
	}
}

// Client speaks APIv3 REST to the host CRM. It implements ports.HostPlatform,
// ports.ContributionLedger and ports.RecurringSchedule.
type Client struct {
	config     Config
	httpClient *http.Client
	backoff    resilience.BackoffStrategy
	logger     *zap.Logger
}

// NewClient validates the config and builds the transport
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse host endpoint: %w", err)
	}
	if endpoint.Scheme != "https" || endpoint.Host == "" {
		return nil, fmt.Errorf("host endpoint must be an https URL, got %q", cfg.Endpoint)
	}
	if cfg.APIKey == "" || cfg.SiteKey == "" {
		return nil, fmt.Errorf("host api key and site key are required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("host timeout must be positive")
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.ProcessorClassName == "" {
		cfg.ProcessorClassName = DefaultProcessorClassName
	}

	transportCfg := httpclient.HostAPIClientConfig()
	transportCfg.RootCAs = cfg.RootCAs

	return &Client{
		config:     cfg,
		httpClient: httpclient.NewHTTPClient(transportCfg, cfg.Timeout),
		backoff:    resilience.HostAPIBackoff(),
		logger:     logger,
	}, nil
}

// response is the APIv3 envelope. getsingle answers without it, so the raw
// body is kept for those calls.
type response struct {
	IsError      int             `json:"is_error"`
	ErrorMessage string          `json:"error_message"`
	ID           json.Number     `json:"id"`
	Count        int             `json:"count"`
	Values       json.RawMessage `json:"values"`

	raw []byte
}

// unreachableError marks failures where the request may not have reached the host.
type unreachableError struct {
	err error
}

func (e *unreachableError) Error() string { return e.err.Error() }
func (e *unreachableError) Unwrap() error { return e.err }

func isUnreachable(err error) bool {
	var u *unreachableError
	return errors.As(err, &u)
}

// read performs an idempotent call, retrying transport failures.
func (c *Client) read(ctx context.Context, entity, action string, params map[string]any) (*response, error) {
	var resp *response
	err := resilience.Retry(ctx, c.backoff, c.config.ReadRetries+1, isUnreachable, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.call(ctx, entity, action, params)
		return callErr
	})
	return resp, err
}

// write performs a non-idempotent call exactly once.
func (c *Client) write(ctx context.Context, entity, action string, params map[string]any) (*response, error) {
	return c.call(ctx, entity, action, params)
}

func (c *Client) call(ctx context.Context, entity, action string, params map[string]any) (*response, error) {
	resp, err := c.post(ctx, entity, action, params)

	outcome := "ok"
	switch {
	case isUnreachable(err):
		outcome = "unreachable"
	case err != nil:
		outcome = "api_error"
	}
	hostRequestsTotal.WithLabelValues(entity, action, outcome).Inc()

	if err != nil {
		var u *unreachableError
		if errors.As(err, &u) {
			return nil, domain.WrapError(domain.ErrorCodeHostAPI, fmt.Sprintf("%s.%s", entity, action), err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, entity, action string, params map[string]any) (*response, error) {
	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "encode host params", err)
	}

	form := url.Values{}
	form.Set("entity", entity)
	form.Set("action", action)
	form.Set("api_key", c.config.APIKey)
	form.Set("key", c.config.SiteKey)
	form.Set("json", string(encoded))
	body := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, strings.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "build host request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	// The REST endpoint refuses requests that don't look like AJAX.
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	hostRequestDuration.WithLabelValues(entity, action).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("Host API request failed",
			zap.String("entity", entity),
			zap.String("action", action),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(redactURLError(err)),
		)
		return nil, &unreachableError{err: redactURLError(err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &unreachableError{err: fmt.Errorf("read host response: %w", err)}
	}

	c.logger.Debug("Host API responded",
		zap.String("entity", entity),
		zap.String("action", action),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case httpResp.StatusCode >= 500:
		return nil, &unreachableError{err: fmt.Errorf("host returned HTTP %d", httpResp.StatusCode)}
	case httpResp.StatusCode != http.StatusOK:
		return nil, domain.NewDomainError(domain.ErrorCodeHostAPI,
			fmt.Sprintf("host returned HTTP %d for %s.%s", httpResp.StatusCode, entity, action))
	}

	resp := &response{raw: raw}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeHostAPI, fmt.Sprintf("decode %s.%s response", entity, action), err)
	}
	if resp.IsError != 0 {
		c.logger.Warn("Host API returned an error",
			zap.String("entity", entity),
			zap.String("action", action),
			zap.String("error_message", resp.ErrorMessage),
		)
		return nil, domain.NewDomainError(domain.ErrorCodeHostAPI, resp.ErrorMessage).
			WithDetail("entity", entity).
			WithDetail("action", action)
	}
	return resp, nil
}

// rows decodes a sequential values array.
func (r *response) rows() ([]row, error) {
	if len(r.Values) == 0 || string(r.Values) == "null" {
		return nil, nil
	}
	var out []row
	dec := json.NewDecoder(bytes.NewReader(r.Values))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeHostAPI, "decode host values", err)
	}
	return out, nil
}

// single decodes a getsingle body.
func (r *response) single() (row, error) {
	out := row{}
	dec := json.NewDecoder(bytes.NewReader(r.raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeHostAPI, "decode host record", err)
	}
	return out, nil
}

// id returns the created or updated entity id, 0 when absent.
func (r *response) id() int64 {
	if r.ID == "" {
		return 0
	}
	n, err := r.ID.Int64()
	if err != nil {
		return 0
	}
	return n
}

// redactURLError drops the query string net/http puts in *url.Error. The api
// key travels in the body, but a misconfigured endpoint could still carry secrets.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, parseErr := url.Parse(ue.URL); parseErr == nil {
			u.RawQuery = ""
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}
