package auth

import (
	"context"
	"net/http"
	"strings"
)

// AuthContext carries a per-request credential override. When an inbound run
// request already presents an Authorization header, that header wins over the
// configured client-credentials token for the outbound call.
type AuthContext struct {
	Authorization string
}

type contextKey string

const authContextKey contextKey = "auth"

// CreateAuthContext extracts the override from an inbound request, if any.
func CreateAuthContext(r *http.Request) *AuthContext {
	authCtx := &AuthContext{}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		authCtx.Authorization = header
	}
	return authCtx
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func FromContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok
}
