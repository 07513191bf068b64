package trust

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"os"
	"time"
)

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	// Timeout bounds each request. Zero means none.
	Timeout time.Duration
	// RootCAFile is an optional PEM bundle added to the system roots, e.g. a
	// local development CA.
	RootCAFile string
	// RootCAs replaces the system roots entirely when set.
	RootCAs *x509.CertPool
}

// NewHTTPClient returns an *http.Client whose every TLS handshake is checked
// by g. Chain verification still happens first.
func NewHTTPClient(g *Guard, opts ClientOptions) (*http.Client, error) {
	cfg, err := TLSConfig(g, opts)
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = cfg
	return &http.Client{Transport: tr, Timeout: opts.Timeout}, nil
}

// TLSConfig returns a client TLS configuration with g installed, for
// transports other than HTTP.
func TLSConfig(g *Guard, opts ClientOptions) (*tls.Config, error) {
	roots := opts.RootCAs
	if roots == nil && opts.RootCAFile != "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pemData, err := os.ReadFile(opts.RootCAFile)
		if err != nil {
			return nil, err
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("no certificates in root CA file")
		}
		roots = pool
	}
	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		RootCAs:          roots,
		VerifyConnection: g.VerifyConnection,
	}, nil
}
