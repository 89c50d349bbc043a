package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Client is an http client with tracing of outgoing requests.
type Client struct {
	client *http.Client
}

func (c *Client) HTTP() *http.Client {
	return c.client
}

func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// NewTLSConfig creates a client tls configuration.
func NewTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}
	if cfg.CAPool == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.CAPool)
	if err != nil {
		return nil, fmt.Errorf("cannot read caPool: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("caPool('%v') doesn't contain certificates", cfg.CAPool)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

func New(config Config, tracerProvider trace.TracerProvider) (*Client, error) {
	tlsCfg, err := NewTLSConfig(config.TLS)
	if err != nil {
		return nil, err
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = config.MaxIdleConns
	t.MaxConnsPerHost = config.MaxConnsPerHost
	t.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
	t.IdleConnTimeout = config.IdleConnTimeout
	t.TLSClientConfig = tlsCfg
	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(t, otelhttp.WithTracerProvider(tracerProvider)),
			Timeout:   config.Timeout,
		},
	}, nil
}
