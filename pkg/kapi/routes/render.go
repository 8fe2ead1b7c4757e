package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi/schemas"
	"github.com/quatton/kino/pkg/kapi/services/auth"
	"github.com/quatton/kino/pkg/kapi/services/renders"
	"github.com/quatton/kino/pkg/kart"
)

func RegisterRenders(api huma.API, svc *renders.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "render-queue",
		Method:      http.MethodPost,
		Path:        "/render/queue",
		Summary:     "Queue a render",
		Description: "Charges one credit and queues the animation for rendering. Poll the status endpoint until the job is completed or failed.",
		Tags:        []string{TagRenders.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.QueueRenderRequest) (*schemas.RenderJobResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		ir, err := json.Marshal(input.Body.AnimationIR)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("animation_ir is not valid JSON")
		}
		rec, err := svc.Queue(ctx, p.ID.String(), renders.QueueInput{
			AnimationIR:  ir,
			OutputFormat: input.Body.OutputFormat,
			Quality:      input.Body.Quality,
			CustomCode:   input.Body.CustomCode,
			Audio: renders.AudioOptions{
				IncludeVoiceover: input.Body.IncludeVoiceover,
				VoiceoverText:    input.Body.VoiceoverText,
				VoiceoverVoice:   input.Body.VoiceoverVoice,
				IncludeMusic:     input.Body.IncludeMusic,
				MusicMood:        input.Body.MusicMood,
				MusicVolume:      input.Body.MusicVolume,
			},
		})
		if err != nil {
			return nil, renderError("queue render", err)
		}
		return &schemas.RenderJobResponse{Body: toRenderJob(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-status",
		Method:      http.MethodGet,
		Path:        "/render/status/{job_id}",
		Summary:     "Get render status",
		Description: "Returns the current state of one of the caller's jobs",
		Tags:        []string{TagRenders.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.JobIDPath) (*schemas.RenderJobResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		rec, err := svc.Get(ctx, p.ID.String(), input.JobID)
		if err != nil {
			return nil, jobError(err)
		}
		return &schemas.RenderJobResponse{Body: toRenderJob(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-list",
		Method:      http.MethodGet,
		Path:        "/render/jobs",
		Summary:     "List renders",
		Description: "Lists the caller's jobs, newest first",
		Tags:        []string{TagRenders.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.ListJobsResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		recs, err := svc.List(ctx, p.ID.String())
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to list jobs: %v", err))
		}
		resp := &schemas.ListJobsResponse{Body: make([]schemas.RenderJob, 0, len(recs))}
		for _, rec := range recs {
			resp.Body = append(resp.Body, toRenderJob(rec))
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-cancel",
		Method:      http.MethodDelete,
		Path:        "/render/jobs/{job_id}",
		Summary:     "Cancel a render",
		Description: "Cancels a pending or processing job. The job is marked failed.",
		Tags:        []string{TagRenders.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.JobIDPath) (*schemas.RenderJobResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		rec, err := svc.Cancel(ctx, p.ID.String(), input.JobID)
		if errors.Is(err, renders.ErrNotCancellable) {
			return nil, huma.Error409Conflict(fmt.Sprintf("Job is already %s", rec.Status))
		}
		if err != nil {
			return nil, jobError(err)
		}
		return &schemas.RenderJobResponse{Body: toRenderJob(rec)}, nil
	})
}

func RegisterInstantRender(api huma.API, svc *renders.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "render-instant",
		Method:      http.MethodPost,
		Path:        "/render/instant",
		Summary:     "Render and download",
		Description: "Charges one credit, renders while the request waits and streams the video back. Nothing is stored; use /render/queue for long renders.",
		Tags:        []string{TagRenders.String()},
		Security:    BearerAuth,
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Video content",
				Content: map[string]*huma.MediaType{
					"video/mp4":  {},
					"video/webm": {},
					"image/gif":  {},
				},
			},
		},
	}, func(ctx context.Context, input *schemas.InstantRenderRequest) (*huma.StreamResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		ir, err := json.Marshal(input.Body.AnimationIR)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("animation_ir is not valid JSON")
		}
		out, err := svc.RenderNow(ctx, p.ID.String(), renders.QueueInput{
			AnimationIR:  ir,
			OutputFormat: input.Body.OutputFormat,
			Quality:      input.Body.Quality,
			CustomCode:   input.Body.CustomCode,
		})
		if err != nil {
			return nil, renderError("render", err)
		}
		f, err := os.Open(out.Path)
		if err != nil {
			out.Close()
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to open video: %v", err))
		}

		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				defer out.Close()
				defer f.Close()
				hctx.SetHeader("Content-Type", kart.ContentTypeFor(out.Format))
				hctx.SetHeader("Content-Disposition", fmt.Sprintf(`attachment; filename="animation.%s"`, out.Format))
				if out.Size > 0 {
					hctx.SetHeader("Content-Length", strconv.FormatInt(out.Size, 10))
				}
				hctx.SetStatus(http.StatusOK)
				io.Copy(hctx.BodyWriter(), f)
			},
		}, nil
	})
}

// renderError maps a Queue or RenderNow failure onto an HTTP error.
func renderError(action string, err error) error {
	switch {
	case errors.Is(err, renders.ErrInvalidRequest):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, auth.ErrNoCredits):
		return huma.NewError(http.StatusPaymentRequired, "No credits remaining")
	case errors.Is(err, auth.ErrUserNotFound):
		return huma.Error401Unauthorized("User no longer exists")
	case errors.Is(err, renders.ErrServiceShutdown):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, renders.ErrRenderFailed):
		return huma.Error500InternalServerError(err.Error())
	}
	return huma.Error500InternalServerError(fmt.Sprintf("failed to %s: %v", action, err))
}

func jobError(err error) error {
	if errors.Is(err, renders.ErrJobNotFound) {
		return huma.Error404NotFound("Job not found")
	}
	return huma.Error500InternalServerError(fmt.Sprintf("failed to load job: %v", err))
}

func toRenderJob(rec *renders.Record) schemas.RenderJob {
	return schemas.RenderJob{
		JobID:             rec.JobID,
		Status:            string(rec.Status),
		VideoURL:          rec.VideoURL,
		ErrorMessage:      rec.ErrorMessage,
		EstimatedDuration: rec.EstimatedDuration,
		OutputFormat:      rec.OutputFormat,
		Quality:           rec.Quality,
		CreatedAt:         rec.CreatedAt,
		CompletedAt:       rec.CompletedAt,
	}
}
