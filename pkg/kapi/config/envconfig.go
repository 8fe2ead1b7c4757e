package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type EnvConfig struct {
	Port          string        `envconfig:"PORT" default:"8000"`
	Environment   string        `envconfig:"ENVIRONMENT" default:"development"`
	AuthSecret    string        `envconfig:"AUTH_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	ValkeyURL     string        `envconfig:"VALKEY_URL"`
	JobRecordTTL  time.Duration `envconfig:"JOB_RECORD_TTL" default:"168h"`
	MaxConcurrent int           `envconfig:"MAX_CONCURRENT_RENDERS" default:"3"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"text"`

	// Storage is "local" or "s3".
	Storage     string `envconfig:"STORAGE" default:"local"`
	StorageDir  string `envconfig:"STORAGE_DIR" default:"./data/videos"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kino-videos"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`

	// Renderer is "local" or "docker".
	Renderer        string `envconfig:"RENDERER" default:"local"`
	ManimBinary     string `envconfig:"MANIM_BINARY" default:"manim"`
	RenderWorkDir   string `envconfig:"RENDER_WORK_DIR"`
	DockerImage     string `envconfig:"DOCKER_IMAGE" default:"manimcommunity/manim:stable"`
	DockerPullImage bool   `envconfig:"DOCKER_PULL_IMAGE" default:"false"`
	DockerCPUs      string `envconfig:"DOCKER_CPUS" default:"2"`
	DockerMemory    string `envconfig:"DOCKER_MEMORY" default:"2g"`
}

// IsDev reports whether ENVIRONMENT names a development deployment.
func IsDev() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "development" || env == "dev" || env == ""
}

func ValidateEnv() (*EnvConfig, error) {
	if IsDev() {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *EnvConfig) Validate() error {
	var errors []string

	if len(c.AuthSecret) < 32 {
		errors = append(errors, "  ❌ AUTH_SECRET must be at least 32 characters")
	}

	if c.TokenTTL <= 0 {
		errors = append(errors, "  ❌ TOKEN_TTL must be positive")
	}

	if c.MaxConcurrent < 1 {
		errors = append(errors, "  ❌ MAX_CONCURRENT_RENDERS must be at least 1")
	}

	switch c.Storage {
	case "local":
	case "s3":
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			errors = append(errors, "  ❌ S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE=s3")
		}
	default:
		errors = append(errors, fmt.Sprintf("  ❌ STORAGE must be local or s3, got %q", c.Storage))
	}

	if c.Renderer != "local" && c.Renderer != "docker" {
		errors = append(errors, fmt.Sprintf("  ❌ RENDERER must be local or docker, got %q", c.Renderer))
	}

	if _, err := c.Level(); err != nil {
		errors = append(errors, fmt.Sprintf("  ❌ LOG_LEVEL: %v", err))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("  ❌ LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

// Level parses LogLevel.
func (c *EnvConfig) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func orMemory(v string) string {
	if v == "" {
		return "in-memory"
	}
	return MaskSecret(v)
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Auth Secret: %s\n", MaskSecret(c.AuthSecret))
	fmtr("  Token TTL: %s\n", c.TokenTTL)
	fmtr("  Database: %s\n", orMemory(c.DatabaseURL))
	fmtr("  Valkey: %s\n", orMemory(c.ValkeyURL))
	fmtr("  Max concurrent renders: %d\n", c.MaxConcurrent)

	if c.Storage == "s3" {
		fmtr("  Storage: s3 %s/%s\n", c.S3Endpoint, c.S3Bucket)
	} else {
		fmtr("  Storage: local %s\n", c.StorageDir)
	}

	if c.Renderer == "docker" {
		fmtr("  Renderer: docker (%s, cpus=%s, memory=%s)\n", c.DockerImage, c.DockerCPUs, c.DockerMemory)
	} else {
		fmtr("  Renderer: local (%s)\n", c.ManimBinary)
	}
}
