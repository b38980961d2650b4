package auth

import (
	"context"
)

type requesterContextKey struct{}

// WithRequester attaches the authenticated user id to ctx. An empty id
// leaves ctx unchanged.
func WithRequester(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, requesterContextKey{}, userID)
}

// RequesterFromContext returns the user id stored by WithRequester.
func RequesterFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requesterContextKey{}).(string)
	return id, ok && id != ""
}
