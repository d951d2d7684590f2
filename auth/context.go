// This file, `context.go`, carries verified session data through a request's context.Context.
package auth

import (
	"context"
)

// `contextKey` is a custom type for context keys. Using a custom type prevents collisions
// with context keys defined in other packages.
type contextKey string

const (
	claimsContextKey contextKey = "auth_claims"
	tokenContextKey  contextKey = "auth_token"
)

// Session is what the Authenticate middleware learned about the caller: the verified
// claims and the raw bearer token they came from.
type Session struct {
	Claims *Claims
	Token  string
}

// NewContextWithSession returns a child context holding s.
func NewContextWithSession(ctx context.Context, s Session) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey, s.Claims)
	return context.WithValue(ctx, tokenContextKey, s.Token)
}

// SessionFromContext extracts the Session stored by NewContextWithSession.
// The second return value reports whether a verified session was present.
func SessionFromContext(ctx context.Context) (Session, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok || claims == nil {
		return Session{}, false
	}
	token, _ := ctx.Value(tokenContextKey).(string)
	return Session{Claims: claims, Token: token}, true
}
