package auth

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the caller identified by a verified bearer token.
type Principal struct {
	ID       uuid.UUID
	Email    string
	Username string
	Tier     string
}

type ctxKey string

const principalKey ctxKey = "kino.principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if v := ctx.Value(principalKey); v != nil {
		if p, ok := v.(*Principal); ok && p != nil {
			return p, true
		}
	}
	return nil, false
}
