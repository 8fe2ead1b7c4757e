package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/quatton/kino/pkg/kapi/config"
	"github.com/quatton/kino/pkg/kapi/services/auth"
	"github.com/quatton/kino/pkg/kapi/services/renders"
	"github.com/quatton/kino/pkg/kart"
	"github.com/quatton/kino/pkg/kauth"
	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/krender"
	"github.com/quatton/kino/pkg/kv"
	"github.com/uptrace/bun"
)

type Services struct {
	Auth    *auth.Service
	Renders *renders.Service
	Metrics *prometheus.Registry

	closers []io.Closer
}

// Deps are the backends NewServices wires together. Nil fields fall back to
// in-process implementations.
type Deps struct {
	DB       *bun.DB
	KV       kv.Store
	Videos   kart.Store
	Renderer krender.Renderer
	Logger   *klog.Logger
}

func NewServices(ctx context.Context, cfg *config.EnvConfig, deps Deps) (*Services, error) {
	log := deps.Logger
	if log == nil {
		log = klog.Discard()
	}

	var users auth.UserRepo = auth.NewMemoryUserRepo()
	if deps.DB != nil {
		users = auth.NewBunUserRepo(deps.DB)
	}
	authSvc := auth.NewService(users, kauth.NewIssuer(cfg.AuthSecret, cfg.TokenTTL), auth.WithLogger(log.With("component", "auth")))

	records := deps.KV
	if records == nil {
		records = kv.NewMemoryStore()
	}

	var closers []io.Closer
	videos := deps.Videos
	if videos == nil {
		var err error
		videos, err = NewVideoStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	if err := videos.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare video storage: %w", err)
	}

	renderer := deps.Renderer
	if renderer == nil {
		var err error
		renderer, err = NewRenderer(ctx, cfg, log.With("component", "renderer"))
		if err != nil {
			return nil, err
		}
		if c, ok := renderer.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rendersSvc := renders.NewService(records, videos, renderer,
		renders.WithMaxConcurrent(cfg.MaxConcurrent),
		renders.WithRecordTTL(cfg.JobRecordTTL),
		renders.WithCreditLedger(authSvc),
		renders.WithMetrics(renders.NewMetrics(reg)),
		renders.WithLogger(log.With("component", "renders")),
	)

	return &Services{
		Auth:    authSvc,
		Renders: rendersSvc,
		Metrics: reg,
		closers: closers,
	}, nil
}

// NewVideoStore builds the store selected by STORAGE.
func NewVideoStore(cfg *config.EnvConfig) (kart.Store, error) {
	if cfg.Storage == "s3" {
		return kart.NewS3Store(kart.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return kart.NewLocalStore(cfg.StorageDir), nil
}

// NewRenderer builds the renderer selected by RENDERER.
func NewRenderer(ctx context.Context, cfg *config.EnvConfig, log *klog.Logger) (krender.Renderer, error) {
	if cfg.Renderer == "docker" {
		cc := krender.DefaultContainerConfig()
		cc.Image = cfg.DockerImage
		cc.PullImage = cfg.DockerPullImage
		cc.Resources.CPULimit = cfg.DockerCPUs
		cc.Resources.MemoryLimit = cfg.DockerMemory
		r, err := krender.NewDockerRenderer(cc, cfg.RenderWorkDir, log)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("docker daemon unreachable: %w", err)
		}
		return r, nil
	}
	return krender.NewLocalRenderer(
		krender.WithBinary(cfg.ManimBinary),
		krender.WithWorkDir(cfg.RenderWorkDir),
		krender.WithRendererLogger(log),
	), nil
}

// Close drains running renders, then releases the renderer.
func (s *Services) Close() error {
	var errs []error
	if s.Renders != nil {
		errs = append(errs, s.Renders.Close())
	}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
