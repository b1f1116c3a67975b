package identifier

import (
	"context"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// IdentitySource resolves who is uploading.
type IdentitySource interface {
	ResolveIdentity(ctx context.Context) (string, error)
}

type IdentitySourceFunc func(ctx context.Context) (string, error)

func (f IdentitySourceFunc) ResolveIdentity(ctx context.Context) (string, error) { return f(ctx) }

type ctxKey int

const (
	sessionKey ctxKey = iota
	userKey
)

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

func SessionIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey).(string); ok {
		return v
	}
	return ""
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey, id)
}

func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userKey).(string); ok {
		return v
	}
	return ""
}

// SessionSource reads the session id the HTTP layer put in the context.
var SessionSource = IdentitySourceFunc(func(ctx context.Context) (string, error) {
	id := SessionIDFrom(ctx)
	if id == "" {
		return "", apperr.Unauthorized("no session")
	}
	return id, nil
})

// UserSource reads the authenticated user id.
var UserSource = IdentitySourceFunc(func(ctx context.Context) (string, error) {
	id := UserIDFrom(ctx)
	if id == "" {
		return "", apperr.Unauthorized("authentication required")
	}
	return id, nil
})
