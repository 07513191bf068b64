package trust_test

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/trust"
)

func tlsServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func clientFor(t *testing.T, srv *httptest.Server, g *trust.Guard) *http.Client {
	t.Helper()
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	c, err := trust.NewHTTPClient(g, trust.ClientOptions{RootCAs: pool, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

func TestPinnedCertificateAccepted(t *testing.T) {
	srv, hits := tlsServer(t)
	pin := trust.FingerprintDER(srv.Certificate().Raw)
	c := clientFor(t, srv, trust.NewGuard([]string{pin}, trust.ModeEnforce, zerolog.Nop()))

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if hits.Load() != 1 {
		t.Fatalf("handler hits = %d, want 1", hits.Load())
	}
}

func TestUnpinnedCertificateRefusedBeforeRequest(t *testing.T) {
	srv, hits := tlsServer(t)
	g := trust.NewGuard([]string{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="}, trust.ModeEnforce, zerolog.Nop())
	c := clientFor(t, srv, g)

	_, err := c.Post(srv.URL, "application/json", nil)
	if !errors.Is(err, domain.ErrCertificatePinningFailure) {
		t.Fatalf("want ErrCertificatePinningFailure, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("handler ran %d times; no request may reach the server", hits.Load())
	}
}

func TestEmptyPinSetRefuses(t *testing.T) {
	srv, hits := tlsServer(t)
	c := clientFor(t, srv, trust.NewGuard(nil, trust.ModeEnforce, zerolog.Nop()))
	if _, err := c.Get(srv.URL); !errors.Is(err, domain.ErrCertificatePinningFailure) {
		t.Fatalf("want ErrCertificatePinningFailure, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("request reached the server")
	}
}

func TestDiagnosticModeAllows(t *testing.T) {
	srv, hits := tlsServer(t)
	c := clientFor(t, srv, trust.NewGuard(nil, trust.ModeDiagnostic, zerolog.Nop()))
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if hits.Load() != 1 {
		t.Fatalf("handler hits = %d, want 1", hits.Load())
	}
}

func TestVerifyConnectionNoCertificates(t *testing.T) {
	g := trust.NewGuard([]string{"x"}, trust.ModeEnforce, zerolog.Nop())
	if err := g.VerifyConnection(tls.ConnectionState{}); !errors.Is(err, domain.ErrCertificatePinningFailure) {
		t.Fatalf("want ErrCertificatePinningFailure, got %v", err)
	}
}

func TestFingerprintPEM(t *testing.T) {
	srv, _ := tlsServer(t)
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	pins, err := trust.FingerprintPEM(data)
	if err != nil {
		t.Fatalf("FingerprintPEM: %v", err)
	}
	if len(pins) != 1 || pins[0] != trust.FingerprintDER(srv.Certificate().Raw) {
		t.Fatalf("pins = %v", pins)
	}
	if _, err := trust.FingerprintPEM([]byte("nothing here")); err == nil {
		t.Fatal("expected error for empty PEM")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]trust.Mode{"": trust.ModeEnforce, "enforce": trust.ModeEnforce, "Diagnostic": trust.ModeDiagnostic} {
		got, err := trust.ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := trust.ParseMode("off"); err == nil {
		t.Fatal("expected error")
	}
}
