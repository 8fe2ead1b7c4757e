package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi/services/renders"
)

type GetFileInput struct {
	Name string `path:"name" doc:"Video file name, <job_id>.<ext>" example:"0193f1b2-7c1d-7cc1-9a8e-3f1d2c0b4a55.mp4"`
}

func RegisterFiles(api huma.API, svc *renders.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "get-file",
		Method:      http.MethodGet,
		Path:        "/files/{name}",
		Summary:     "Download a rendered video",
		Description: "Streams the video of a completed job owned by the caller",
		Tags:        []string{TagFiles.String()},
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
	}, func(ctx context.Context, input *GetFileInput) (*huma.StreamResponse, error) {
		p, err := requirePrincipal(ctx)
		if err != nil {
			return nil, err
		}
		rc, art, err := svc.OpenVideo(ctx, p.ID.String(), input.Name)
		switch {
		case errors.Is(err, renders.ErrJobNotFound), errors.Is(err, renders.ErrVideoNotReady):
			return nil, huma.Error404NotFound("File not found")
		case err != nil:
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to open video: %v", err))
		}

		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				defer rc.Close()
				hctx.SetHeader("Content-Type", art.ContentType)
				if art.Size > 0 {
					hctx.SetHeader("Content-Length", strconv.FormatInt(art.Size, 10))
				}
				hctx.SetStatus(http.StatusOK)
				io.Copy(hctx.BodyWriter(), rc)
			},
		}, nil
	})
}
