package http

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// HTTPClientConfig holds HTTP client configuration.
// Certificate verification is always on; RootCAs only adds trust anchors.
type HTTPClientConfig struct {
	// Connection pooling
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	// Timeouts
	DialTimeout           time.Duration // TCP connect timeout
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration // zero leaves it to the overall client timeout
	KeepAlive             time.Duration

	DisableCompression bool

	// TLS
	MinTLSVersion uint16
	RootCAs       *x509.CertPool // nil uses the system pool
}

// MerchantwareClientConfig returns the transport for the single Merchantware host.
// connectTimeout bounds both the TCP dial and the TLS handshake.
func MerchantwareClientConfig(connectTimeout time.Duration) *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		DialTimeout:         connectTimeout,
		TLSHandshakeTimeout: connectTimeout,
		KeepAlive:           60 * time.Second,

		// SOAP bodies are small XML documents
		DisableCompression: true,

		MinTLSVersion: tls.VersionTLS12,
	}
}

// HostAPIClientConfig returns the transport for the host CRM REST API.
func HostAPIClientConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		KeepAlive:             60 * time.Second,

		MinTLSVersion: tls.VersionTLS12,
	}
}

// NewHTTPClient creates an HTTP client with the given configuration.
// timeout bounds the whole exchange including reading the body.
func NewHTTPClient(cfg *HTTPClientConfig, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression: cfg.DisableCompression,

		TLSClientConfig: &tls.Config{
			MinVersion: cfg.MinTLSVersion,
			RootCAs:    cfg.RootCAs,
		},

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// LoadRootCAs returns the system pool extended with the PEM certificates in path.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", path)
	}
	return pool, nil
}
