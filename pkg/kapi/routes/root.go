package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi/services"
	"github.com/quatton/kino/pkg/kapi/services/auth"
)

type RootOutput struct {
	Body struct {
		Message string `json:"message" example:"kino render API" doc:"Welcome message"`
	}
}

// RegisterAPI registers every route. A nil svcs registers the operations
// only, which is enough to emit the OpenAPI document.
func RegisterAPI(api huma.API, svcs *services.Services) {
	if svcs == nil {
		svcs = &services.Services{}
	} else if svcs.Auth != nil {
		api.UseMiddleware(svcs.Auth.Middleware())
	}

	RegisterIndex(api)
	RegisterHealth(api)
	RegisterAuth(api, svcs.Auth)
	RegisterLimits(api, svcs.Auth, svcs.Renders)
	RegisterRenders(api, svcs.Renders)
	RegisterInstantRender(api, svcs.Renders)
	RegisterFiles(api, svcs.Renders)
	RegisterAnalytics(api, svcs.Auth, svcs.Renders)
}

func RegisterIndex(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Root endpoint",
		Description: "Returns a welcome message",
		Tags:        []string{TagHealth.String()},
	}, func(ctx context.Context, input *struct{}) (*RootOutput, error) {
		resp := &RootOutput{}
		resp.Body.Message = "kino render API"
		return resp, nil
	})
}

func requirePrincipal(ctx context.Context) (*auth.Principal, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return p, nil
}
