package authz

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// IdentityMode selects how the current principal is resolved.
type IdentityMode string

const (
	// IdentityModeHeader trusts X-Remote-* headers from an authenticating proxy.
	IdentityModeHeader IdentityMode = "header"
	// IdentityModeJWT reads a bearer token issued by the identity provider.
	IdentityModeJWT IdentityMode = "jwt"
)

// DefaultAdminGroup is the group that marks administrators in header mode.
const DefaultAdminGroup = "portfolio-admins"

// IdentityConfig configures principal resolution.
type IdentityConfig struct {
	Mode       IdentityMode
	AdminGroup string
	JWT        JWTResolverConfig
}

// DefaultIdentityConfig returns header mode with the default admin group.
func DefaultIdentityConfig() *IdentityConfig {
	return &IdentityConfig{
		Mode:       IdentityModeHeader,
		AdminGroup: DefaultAdminGroup,
		JWT: JWTResolverConfig{
			AdminClaim: "role",
			AdminValue: "admin",
		},
	}
}

// IdentityConfigFromEnv loads config from environment variables.
// PORTFOLIO_AUTH_MODE, PORTFOLIO_AUTH_ADMIN_GROUP, PORTFOLIO_JWT_ADMIN_CLAIM,
// PORTFOLIO_JWT_ADMIN_VALUE, PORTFOLIO_JWT_PUBLIC_KEY_PATH, PORTFOLIO_JWT_ISSUER,
// PORTFOLIO_JWT_AUDIENCE
func IdentityConfigFromEnv() *IdentityConfig {
	cfg := DefaultIdentityConfig()

	if v := os.Getenv("PORTFOLIO_AUTH_MODE"); v != "" {
		cfg.Mode = IdentityMode(strings.ToLower(v))
	}
	if v := os.Getenv("PORTFOLIO_AUTH_ADMIN_GROUP"); v != "" {
		cfg.AdminGroup = v
	}
	if v := os.Getenv("PORTFOLIO_JWT_ADMIN_CLAIM"); v != "" {
		cfg.JWT.AdminClaim = v
	}
	if v := os.Getenv("PORTFOLIO_JWT_ADMIN_VALUE"); v != "" {
		cfg.JWT.AdminValue = v
	}
	cfg.JWT.PublicKeyPath = os.Getenv("PORTFOLIO_JWT_PUBLIC_KEY_PATH")
	cfg.JWT.Issuer = os.Getenv("PORTFOLIO_JWT_ISSUER")
	cfg.JWT.Audience = os.Getenv("PORTFOLIO_JWT_AUDIENCE")

	return cfg
}

// NewResolver builds the IdentityResolver selected by cfg.Mode.
func NewResolver(cfg *IdentityConfig, logger *slog.Logger) (IdentityResolver, error) {
	if cfg == nil {
		cfg = DefaultIdentityConfig()
	}
	switch cfg.Mode {
	case IdentityModeHeader, "":
		return HeaderResolver{AdminGroup: cfg.AdminGroup}, nil
	case IdentityModeJWT:
		jwtCfg := cfg.JWT
		jwtCfg.Logger = logger
		return NewJWTResolver(jwtCfg)
	default:
		return nil, fmt.Errorf("unknown identity mode %q (expected header or jwt)", cfg.Mode)
	}
}
