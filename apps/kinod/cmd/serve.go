package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quatton/kino/pkg/db"
	"github.com/quatton/kino/pkg/kapi"
	"github.com/quatton/kino/pkg/kapi/config"
	"github.com/quatton/kino/pkg/kapi/routes"
	"github.com/quatton/kino/pkg/kapi/services"
	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/kv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the render API server",
	Long: `Starts the HTTP server. Configuration comes from the environment (and .env
in development). Without DATABASE_URL users are kept in memory, and without
VALKEY_URL so are job records.`,
	RunE:         serve,
	SilenceUsage: true,
}

var serveMigrate bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.ValidateEnv()
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	level, _ := cfg.Level()
	log := klog.New(klog.Format(cfg.LogFormat), level, os.Stderr)
	cfg.Print(func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format, args...)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var database *bun.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()
		if serveMigrate {
			if err := db.Migrate(ctx, database, log); err != nil {
				return err
			}
		}
	} else {
		log.Warn("DATABASE_URL not set, users are kept in memory")
	}

	var records kv.Store
	if cfg.ValkeyURL != "" {
		store, err := kv.NewValkeyStoreFromURL(cfg.ValkeyURL)
		if err != nil {
			return fmt.Errorf("failed to connect to valkey: %w", err)
		}
		defer store.Close()
		records = store
	}

	svcs, err := services.NewServices(ctx, cfg, services.Deps{
		DB:     database,
		KV:     records,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := svcs.Close(); err != nil {
			log.Error("failed to stop services", "error", err)
		}
	}()

	api := kapi.NewApi()
	routes.RegisterAPI(api.Api, svcs)
	api.MountMetrics(svcs.Metrics)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 kinod listening", "addr", srv.Addr)
		log.Info("📚 OpenAPI docs", "url", "http://localhost:"+cfg.Port+"/docs")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
