package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{Mode: ModeDisabled}, false},
		{"oidc complete", Config{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example", OIDCClientID: "pipeline"}, false},
		{"oidc missing issuer", Config{Mode: ModeOIDC, OIDCClientID: "pipeline"}, true},
		{"oidc missing client", Config{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example"}, true},
		{"unknown mode", Config{Mode: "basic"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() err=%v", err)
			}
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := TokenFromHeader(r); got != tc.want {
			t.Fatalf("TokenFromHeader(%q)=%q, want %q", tc.header, got, tc.want)
		}
	}
}

type staticAuthenticator struct {
	identity Identity
	err      error
}

func (a staticAuthenticator) Authenticate(context.Context, *http.Request) (Identity, error) {
	return a.identity, a.err
}

func TestMiddlewareSkipsConfiguredPrefixes(t *testing.T) {
	m := Middleware{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Authenticator: staticAuthenticator{err: ErrUnauthenticated},
		SkipPrefixes:  []string{"/healthz", "/readyz"},
	}
	h := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("skipped path status=%d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run-pipeline", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected path status=%d, want 401", rec.Code)
	}
}

func TestMiddlewarePropagatesIdentity(t *testing.T) {
	m := Middleware{
		Authenticator: staticAuthenticator{identity: Identity{Subject: "svc-1", Email: "ops@example.com"}},
	}
	var got Identity
	h := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run-pipeline", nil))
	if got.Subject != "svc-1" {
		t.Fatalf("identity=%+v", got)
	}
}
