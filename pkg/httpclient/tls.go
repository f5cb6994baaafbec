package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// TLSConfig holds TLS configuration for outbound requests. A gateway
// reaching an Ollama instance over OLLAMA_HOST on a remote or internal
// host uses this for a custom CA or, in development, to skip
// verification entirely.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// WARNING: development/testing only.
	InsecureSkipVerify bool

	// CACertificate is the path to a custom CA certificate file.
	CACertificate string
}

// ConfigureTLS creates an http.Transport from a TLSConfig. A nil config
// returns a plain transport with default TLS settings.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if config == nil {
		return transport, nil
	}

	if config.CACertificate != "" {
		caCert, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", config.CACertificate, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", config.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	if config.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
		slog.Warn("TLS certificate verification disabled - NOT for production use")
	}

	return transport, nil
}

// WithTLSConfig sets TLS configuration for the HTTP client. If
// WithHTTPClient is applied after it, WithHTTPClient copies the RootCAs and
// InsecureSkipVerify settings onto its client's *http.Transport; no other
// setting of the TLS transport is carried over.
func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		if config == nil {
			return
		}
		transport, err := ConfigureTLS(config)
		if err != nil {
			slog.Warn("failed to configure TLS, using default transport", "error", err)
			return
		}
		if c.client != nil {
			timeout := c.client.Timeout
			c.client.Transport = transport
			c.client.Timeout = timeout
		} else {
			c.client = &http.Client{Transport: transport, Timeout: 120 * time.Second}
		}
	}
}
