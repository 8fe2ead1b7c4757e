package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi/schemas"
)

func RegisterHealth(api huma.API) {
	handler := func(ctx context.Context, input *struct{}) (*schemas.HealthResponse, error) {
		resp := &schemas.HealthResponse{}
		resp.Body.Status = "healthy"
		return resp, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports whether the render service is up",
		Tags:        []string{TagHealth.String()},
	}, handler)

	huma.Register(api, huma.Operation{
		OperationID: "api-health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Alias of /health",
		Tags:        []string{TagHealth.String()},
		Hidden:      true,
	}, handler)
}
