package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/db/models"
	"github.com/quatton/kino/pkg/kapi/schemas"
	"github.com/quatton/kino/pkg/kapi/services/auth"
	"github.com/quatton/kino/pkg/kapi/services/renders"
)

func RegisterAuth(api huma.API, svc *auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "auth-register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a user",
		Description:   "Creates an account on the free tier and returns an access token",
		Tags:          []string{TagAuth.String()},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *schemas.RegisterRequest) (*schemas.AuthResponse, error) {
		session, err := svc.Register(ctx, input.Body.Email, input.Body.Username, input.Body.Password)
		switch {
		case errors.Is(err, auth.ErrUserExists):
			return nil, huma.Error409Conflict("Email already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		case err != nil:
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to register: %v", err))
		}
		return toAuthResponse(session), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in",
		Description: "Exchanges email and password for an access token",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *schemas.LoginRequest) (*schemas.AuthResponse, error) {
		session, err := svc.Login(ctx, input.Body.Email, input.Body.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, huma.Error401Unauthorized("Incorrect email or password")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to log in: %v", err))
		}
		return toAuthResponse(session), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Get current user",
		Description: "Retrieves the authenticated user with their credit balance",
		Tags:        []string{TagAuth.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.MeResponse, error) {
		u, err := currentUser(ctx, svc)
		if err != nil {
			return nil, err
		}
		return &schemas.MeResponse{Body: toUser(u)}, nil
	})
}

func RegisterLimits(api huma.API, users *auth.Service, svc *renders.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-limits",
		Method:      http.MethodGet,
		Path:        "/auth/limits",
		Summary:     "Get render limits",
		Description: "Returns the caller's remaining credits with the scene and format limits every render must respect",
		Tags:        []string{TagAuth.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.LimitsResponse, error) {
		u, err := currentUser(ctx, users)
		if err != nil {
			return nil, err
		}
		l := svc.Limits()
		return &schemas.LimitsResponse{Body: schemas.Limits{
			Tier:                 u.Tier,
			CreditsRemaining:     u.CreditsRemaining,
			CreditsUsed:          u.CreditsUsed,
			MaxConcurrentRenders: l.MaxConcurrent,
			MaxSceneDuration:     l.MaxSceneDuration,
			MaxObjectsPerScene:   l.MaxSceneObjects,
			OutputFormats:        l.OutputFormats,
			Qualities:            l.Qualities,
		}}, nil
	})
}

// currentUser loads the authenticated caller's account.
func currentUser(ctx context.Context, svc *auth.Service) (*models.User, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := svc.User(ctx, p.ID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, huma.Error401Unauthorized("User no longer exists")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to load user: %v", err))
	}
	return u, nil
}

func toAuthResponse(s *auth.Session) *schemas.AuthResponse {
	resp := &schemas.AuthResponse{}
	resp.Body.AccessToken = s.Token
	resp.Body.TokenType = "bearer"
	resp.Body.User = toUser(s.User)
	return resp
}

func toUser(u *models.User) schemas.User {
	return schemas.User{
		ID:                u.ID.String(),
		Email:             u.Email,
		Username:          u.Username,
		Tier:              u.Tier,
		CreditsRemaining:  u.CreditsRemaining,
		CreditsUsed:       u.CreditsUsed,
		AnimationsCreated: u.AnimationsCreated,
		CreatedAt:         u.CreatedAt,
	}
}
