package kapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quatton/kino/pkg/kapi/routes"
)

// Version is stamped into the OpenAPI document. Release builds set it with
// -ldflags "-X github.com/quatton/kino/pkg/kapi.Version=...".
var Version = "1.0.0"

type Api struct {
	Api    huma.API
	Router *chi.Mux
}

func NewApi() *Api {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	config := huma.DefaultConfig("kino Render API", Version)
	config.Info.Description = "Queue Manim renders, poll their status and download the videos."

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Access token from /auth/login or /auth/register",
		},
	}

	api := humachi.New(router, config)
	for _, tag := range routes.AllTags() {
		api.OpenAPI().Tags = append(api.OpenAPI().Tags, &huma.Tag{Name: tag})
	}

	return &Api{Api: api, Router: router}
}

// MountMetrics serves reg on /metrics outside the OpenAPI document.
func (a *Api) MountMetrics(reg *prometheus.Registry) {
	a.Router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
