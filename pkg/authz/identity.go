package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// callerCtxKey is an unexported type used as the context key for CallerContext.
type callerCtxKey struct{}

// WithCaller returns a new context with the given CallerContext attached.
func WithCaller(ctx context.Context, c CallerContext) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, c)
}

// CallerFromContext retrieves the CallerContext stored by IdentityMiddleware.
// Returns an anonymous caller if none is set.
func CallerFromContext(ctx context.Context) CallerContext {
	c, ok := ctx.Value(callerCtxKey{}).(CallerContext)
	if !ok {
		return Anonymous()
	}
	return c
}

// ErrInvalidCredentials is returned by resolvers when credentials are present
// but cannot be trusted. Middleware treats the caller as anonymous.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityResolver resolves the current principal from a request.
// It returns nil, nil for anonymous requests.
type IdentityResolver interface {
	Resolve(r *http.Request) (*Principal, error)
}

// Trusted-proxy headers read by HeaderResolver.
const (
	HeaderUser  = "X-Remote-User"
	HeaderEmail = "X-Remote-Email"
	HeaderName  = "X-Remote-Name"
	HeaderGroup = "X-Remote-Group"
)

// HeaderResolver reads the principal from headers set by a trusted
// authenticating proxy. X-Remote-Group is comma-separated; membership in
// AdminGroup marks the principal as administrator.
type HeaderResolver struct {
	AdminGroup string
}

// Resolve implements IdentityResolver.
func (h HeaderResolver) Resolve(r *http.Request) (*Principal, error) {
	user := strings.TrimSpace(r.Header.Get(HeaderUser))
	if user == "" {
		return nil, nil
	}

	adminGroup := h.AdminGroup
	if adminGroup == "" {
		adminGroup = DefaultAdminGroup
	}

	p := &Principal{
		ID:          user,
		Email:       strings.TrimSpace(r.Header.Get(HeaderEmail)),
		DisplayName: strings.TrimSpace(r.Header.Get(HeaderName)),
	}
	if p.Email == "" && strings.Contains(user, "@") {
		p.Email = user
	}

	for _, g := range strings.Split(r.Header.Get(HeaderGroup), ",") {
		if strings.TrimSpace(g) == adminGroup {
			p.IsAdmin = true
			break
		}
	}
	return p, nil
}

// IdentityMiddleware returns HTTP middleware that resolves the principal and
// stores a CallerContext in the request context. Resolution failures are
// logged and the request continues anonymously.
func IdentityMiddleware(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := Anonymous()
			if resolver != nil {
				p, err := resolver.Resolve(r)
				if err != nil {
					logger.Debug("identity resolution failed, continuing anonymously", "error", err)
				} else if p != nil {
					caller.Principal = p
				}
			}

			caller.RequestID = middleware.GetReqID(r.Context())
			caller.CorrelationID = r.Header.Get("X-Correlation-ID")
			if caller.CorrelationID == "" {
				caller.CorrelationID = caller.RequestID
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
