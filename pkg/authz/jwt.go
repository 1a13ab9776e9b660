package authz

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolverConfig configures the bearer-token identity resolver.
type JWTResolverConfig struct {
	// AdminClaim is the claim path that marks administrators.
	// Supports dot-notation for nested claims (e.g., "app_metadata.role").
	// Default: "role"
	AdminClaim string

	// AdminValue is the claim value that maps to an administrator. A string
	// claim must equal it; an array claim must contain it.
	// Default: "admin"
	AdminValue string

	// PublicKeyPath is the path to the PEM-encoded RSA public key for RS256 verification.
	// If empty, signatures are NOT verified (trusted proxy mode) but the
	// registered claims are still validated.
	PublicKeyPath string

	// Issuer is the expected token issuer. Not validated if empty.
	Issuer string

	// Audience is the expected token audience. Not validated if empty.
	Audience string

	Logger *slog.Logger
}

// JWTResolver resolves principals from "Authorization: Bearer <token>".
// The subject becomes the principal ID; email and name come from the
// "email" and "name" claims.
type JWTResolver struct {
	cfg       JWTResolverConfig
	publicKey *rsa.PublicKey
}

// NewJWTResolver creates a JWTResolver, loading the verification key if configured.
func NewJWTResolver(cfg JWTResolverConfig) (*JWTResolver, error) {
	if cfg.AdminClaim == "" {
		cfg.AdminClaim = "role"
	}
	if cfg.AdminValue == "" {
		cfg.AdminValue = "admin"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	res := &JWTResolver{cfg: cfg}
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		key, err := ParseRSAPublicKey(keyData)
		if err != nil {
			return nil, err
		}
		res.publicKey = key
		cfg.Logger.Info("JWT identity resolver: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("JWT identity resolver: no public key configured, tokens parsed without verification (trusted proxy mode)")
		if cfg.Issuer == "" && cfg.Audience == "" {
			cfg.Logger.Warn("JWT identity resolver: no issuer or audience configured, any unexpired token is accepted")
		}
	}
	return res, nil
}

// NewJWTResolverWithKey creates a verifying JWTResolver from an in-memory key.
func NewJWTResolverWithKey(cfg JWTResolverConfig, key *rsa.PublicKey) *JWTResolver {
	if cfg.AdminClaim == "" {
		cfg.AdminClaim = "role"
	}
	if cfg.AdminValue == "" {
		cfg.AdminValue = "admin"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &JWTResolver{cfg: cfg, publicKey: key}
}

// ParseRSAPublicKey decodes a PEM-encoded PKIX RSA public key.
func ParseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA (got %T)", parsed)
	}
	return key, nil
}

// Resolve implements IdentityResolver.
func (j *JWTResolver) Resolve(r *http.Request) (*Principal, error) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, nil
	}

	claims, err := j.parseClaims(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Principal{
		ID:          sub,
		Email:       email,
		DisplayName: name,
		IsAdmin:     claimMatches(claims, j.cfg.AdminClaim, j.cfg.AdminValue),
	}, nil
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (j *JWTResolver) parseClaims(tokenString string) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if j.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.cfg.Issuer))
	}
	if j.cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.cfg.Audience))
	}

	var token *jwt.Token
	var err error

	if j.publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return j.publicKey, nil
		}, parserOpts...)
	} else {
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
		if err == nil {
			// ParseUnverified skips claim validation.
			err = jwt.NewValidator(parserOpts...).Validate(token.Claims)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("JWT parse error: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

// claimMatches walks a dot-separated claim path and compares the leaf with
// want. Array leaves match if any element equals want.
func claimMatches(claims jwt.MapClaims, path, want string) bool {
	var current interface{} = map[string]interface{}(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		current, ok = m[part]
		if !ok {
			return false
		}
	}

	switch v := current.(type) {
	case string:
		return strings.EqualFold(v, want)
	case bool:
		return v && strings.EqualFold(want, "true")
	case []interface{}:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}
