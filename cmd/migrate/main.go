package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/kino/pkg/db"
	"github.com/quatton/kino/pkg/klog"
	"github.com/uptrace/bun"
)

func main() {
	down := flag.Bool("down", false, "roll back the last migration group")
	flag.Parse()

	logger := klog.NewDefault()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	} else {
		logger.Info("loaded .env file")
	}

	ctx := context.Background()

	var database *bun.DB
	var err error
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		database, err = db.Open(ctx, dsn)
	} else {
		cfg := db.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "kino",
			Password: "password",
			Database: "kino",
			SSLMode:  "disable",
		}
		if err := envconfig.Process("DB", &cfg); err != nil {
			logger.Fatalf("failed to process env vars: %v", err)
		}
		database, err = db.New(ctx, cfg)
	}
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if *down {
		if err := db.Rollback(ctx, database, logger); err != nil {
			logger.Fatalf("failed to roll back: %v", err)
		}
		return
	}

	logger.Info("running migrations")
	if err := db.Migrate(ctx, database, logger); err != nil {
		logger.Fatalf("failed to migrate: %v", err)
	}
	logger.Info("migrations completed")
}
