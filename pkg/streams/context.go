package streams

import "context"

type ctxKey struct{}

// WithStream returns a new context carrying the resolved stream.
func WithStream(ctx context.Context, stream string) context.Context {
	return context.WithValue(ctx, ctxKey{}, stream)
}

// FromContext returns the stream stored by Middleware, or "" if none.
func FromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
