// Package auth protects the pipeline API with optional OIDC bearer-token
// authentication. The default mode is disabled; hardened deployments set
// TRUSTBUILD_AUTH_MODE=oidc and point the service at their issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/platform/env"
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeOIDC     Mode = "oidc"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Email   string
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

// Authenticator resolves the caller identity from a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Mode:          Mode(strings.ToLower(env.String("TRUSTBUILD_AUTH_MODE", string(ModeDisabled)))),
		OIDCIssuerURL: env.String("TRUSTBUILD_OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("TRUSTBUILD_OIDC_CLIENT_ID", ""),
		EmailClaim:    env.String("TRUSTBUILD_OIDC_EMAIL_CLAIM", "email"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeDisabled:
		return nil
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("TRUSTBUILD_OIDC_ISSUER_URL is required for oidc mode")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("TRUSTBUILD_OIDC_CLIENT_ID is required for oidc mode")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q", c.Mode)
	}
}

// TokenFromHeader extracts a bearer token from the Authorization header.
func TokenFromHeader(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
