package civicrm

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testAPIKey  = "api-key-secret"
	testSiteKey = "site-key-secret"
)

// apiCall is one request as the fake host saw it
type apiCall struct {
	Entity string
	Action string
	Params map[string]any
}

// fakeHost answers APIv3 form posts from a route table keyed by "Entity.action".
type fakeHost struct {
	mu     sync.Mutex
	calls  []apiCall
	routes map[string]func(params map[string]any) (int, string)
}

func newFakeHost() *fakeHost {
	return &fakeHost{routes: map[string]func(map[string]any) (int, string){}}
}

func (f *fakeHost) on(route string, status int, body string) {
	f.routes[route] = func(map[string]any) (int, string) { return status, body }
}

func (f *fakeHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("api_key") != testAPIKey || r.PostForm.Get("key") != testSiteKey {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"is_error":1,"error_message":"Failed to authenticate key"}`))
		return
	}

	var params map[string]any
	dec := json.NewDecoder(strings.NewReader(r.PostForm.Get("json")))
	dec.UseNumber()
	_ = dec.Decode(&params)

	call := apiCall{Entity: r.PostForm.Get("entity"), Action: r.PostForm.Get("action"), Params: params}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	handler, ok := f.routes[call.Entity+"."+call.Action]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"is_error":1,"error_message":"API (%s, %s) does not exist"}`, call.Entity, call.Action)
		return
	}
	status, body := handler(params)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeHost) callsTo(route string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Entity+"."+c.Action == route {
			out = append(out, c)
		}
	}
	return out
}

func newTestClient(t *testing.T, host *fakeHost, logger *zap.Logger) *Client {
	t.Helper()

	ts := httptest.NewTLSServer(host)
	t.Cleanup(ts.Close)

	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())

	cfg := DefaultConfig(ts.URL + "/civicrm/ajax/rest")
	cfg.APIKey = testAPIKey
	cfg.SiteKey = testSiteKey
	cfg.RootCAs = pool
	cfg.Timeout = 2 * time.Second

	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	client.backoff = &resilience.FixedBackoff{Delay: time.Millisecond}
	return client
}

func TestNewClient_Validation(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig("https://crm.example.org/civicrm/ajax/rest")
		cfg.APIKey = "a"
		cfg.SiteKey = "b"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"plain http endpoint", func(c *Config) { c.Endpoint = "http://crm.example.org/civicrm/ajax/rest" }},
		{"missing host", func(c *Config) { c.Endpoint = "https:///rest" }},
		{"missing api key", func(c *Config) { c.APIKey = "" }},
		{"missing site key", func(c *Config) { c.SiteKey = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := NewClient(cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}

	cfg := valid()
	cfg.ProcessorClassName = ""
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultProcessorClassName, client.config.ProcessorClassName)
}

func TestClient_UntrustedCertificateIsRejected(t *testing.T) {
	ts := httptest.NewTLSServer(newFakeHost())
	defer ts.Close()

	cfg := DefaultConfig(ts.URL)
	cfg.APIKey = testAPIKey
	cfg.SiteKey = testSiteKey
	cfg.ReadRetries = 0
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = client.DefaultCurrency(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeHostAPI))
}

func TestClient_APIErrorIsNotRetried(t *testing.T) {
	host := newFakeHost()
	host.on("Setting.get", http.StatusOK, `{"is_error":1,"error_message":"Permission denied"}`)
	client := newTestClient(t, host, nil)

	_, err := client.DefaultCurrency(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeHostAPI))
	assert.Contains(t, err.Error(), "Permission denied")
	assert.Len(t, host.callsTo("Setting.get"), 1)
}

func TestClient_ReadsRetryServerErrors(t *testing.T) {
	host := newFakeHost()
	var attempts atomic.Int32
	host.routes["Setting.get"] = func(map[string]any) (int, string) {
		if attempts.Add(1) < 3 {
			return http.StatusServiceUnavailable, "busy"
		}
		return http.StatusOK, `{"is_error":0,"count":1,"values":[{"defaultCurrency":"USD"}]}`
	}
	client := newTestClient(t, host, nil)

	currency, err := client.DefaultCurrency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_ReadsGiveUpAfterRetries(t *testing.T) {
	host := newFakeHost()
	host.on("Setting.get", http.StatusBadGateway, "down")
	client := newTestClient(t, host, nil)

	_, err := client.DefaultCurrency(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeHostAPI))
	assert.Len(t, host.callsTo("Setting.get"), client.config.ReadRetries+1)
}

func TestClient_WritesAreSentOnce(t *testing.T) {
	host := newFakeHost()
	host.on("Contribution.setvalue", http.StatusServiceUnavailable, "busy")
	client := newTestClient(t, host, nil)

	err := client.SetValue(context.Background(), 5, "source", "x")
	require.Error(t, err)
	assert.Len(t, host.callsTo("Contribution.setvalue"), 1)
}

func TestClient_NonOKStatus(t *testing.T) {
	host := newFakeHost()
	host.on("Setting.get", http.StatusForbidden, "nope")
	client := newTestClient(t, host, nil)

	_, err := client.DefaultCurrency(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Len(t, host.callsTo("Setting.get"), 1)
}

func TestClient_MalformedJSON(t *testing.T) {
	host := newFakeHost()
	host.on("Setting.get", http.StatusOK, `<html>maintenance</html>`)
	client := newTestClient(t, host, nil)

	_, err := client.DefaultCurrency(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeHostAPI))
}

func TestClient_NeverLogsKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	host := newFakeHost()
	host.on("Setting.get", http.StatusOK, `{"is_error":1,"error_message":"boom"}`)
	client := newTestClient(t, host, zap.New(core))

	_, _ = client.DefaultCurrency(context.Background())
	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, testAPIKey)
		for _, field := range entry.Context {
			assert.NotContains(t, fmt.Sprint(field.Interface, field.String), testAPIKey)
			assert.NotContains(t, fmt.Sprint(field.Interface, field.String), testSiteKey)
		}
	}
}

func TestRow_Accessors(t *testing.T) {
	r := row{
		"id":       json.Number("12"),
		"as_text":  "34",
		"amount":   "10.50",
		"is_test":  "1",
		"flag":     true,
		"empty":    "",
		"bad":      "x1",
		"optional": "0",
	}

	assert.Equal(t, int64(12), r.int64Val("id"))
	assert.Equal(t, 34, r.intVal("as_text"))
	assert.Equal(t, "10.5", r.decimalVal("amount").String())
	assert.True(t, r.boolVal("is_test"))
	assert.True(t, r.boolVal("flag"))
	assert.False(t, r.boolVal("missing"))
	assert.Zero(t, r.int64Val("bad"))
	assert.Nil(t, r.optInt64("optional"))
	assert.Nil(t, r.optInt("empty"))
	require.NotNil(t, r.optInt("optional"))
	assert.Equal(t, 0, *r.optInt("optional"))
	assert.True(t, r.decimalVal("missing").IsZero())
}
