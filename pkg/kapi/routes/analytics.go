package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi/schemas"
	"github.com/quatton/kino/pkg/kapi/services/auth"
	"github.com/quatton/kino/pkg/kapi/services/renders"
)

func RegisterAnalytics(api huma.API, users *auth.Service, svc *renders.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "analytics-stats",
		Method:      http.MethodGet,
		Path:        "/analytics/stats",
		Summary:     "Get render statistics",
		Description: "Summarises the caller's stored jobs. Jobs whose records expired are not counted; animations_created covers the whole account.",
		Tags:        []string{TagAnalytics.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.StatsResponse, error) {
		u, err := currentUser(ctx, users)
		if err != nil {
			return nil, err
		}
		st, err := svc.Stats(ctx, u.ID.String())
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to compute stats: %v", err))
		}

		byStatus := make(map[string]int, len(st.ByStatus))
		for status, n := range st.ByStatus {
			byStatus[string(status)] = n
		}
		return &schemas.StatsResponse{Body: schemas.UserStats{
			TotalJobs:            st.TotalJobs,
			JobsByStatus:         byStatus,
			JobsByFormat:         st.ByFormat,
			RenderSeconds:        st.RenderSeconds,
			AverageRenderSeconds: st.AverageRenderSeconds,
			CreditsRemaining:     u.CreditsRemaining,
			AnimationsCreated:    u.AnimationsCreated,
			LastJobAt:            st.LastJobAt,
		}}, nil
	})
}
