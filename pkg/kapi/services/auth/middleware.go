package auth

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Middleware attaches a Principal when the request carries a valid bearer
// token. Routes decide for themselves whether one is required.
func (s *Service) Middleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		authHeader := ctx.Header("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				if p, err := s.Authenticate(parts[1]); err == nil {
					s.log.Debug("authenticated user", "user_id", p.ID, "email", p.Email)
					ctx = huma.WithValue(ctx, principalKey, p)
				} else {
					s.log.Warn("invalid token", "error", err)
				}
			}
		}

		next(ctx)
	}
}
