package config

import (
	"strings"
	"testing"
)

func TestValidateEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("AUTH_SECRET", strings.Repeat("s", 32))
	t.Setenv("MAX_CONCURRENT_RENDERS", "5")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("ValidateEnv failed: %v", err)
	}
	if cfg.Port != "8000" || cfg.MaxConcurrent != 5 || cfg.Storage != "local" || cfg.Renderer != "local" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.TokenTTL.Hours() != 168 {
		t.Errorf("expected 7 day token TTL, got %s", cfg.TokenTTL)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &EnvConfig{
		AuthSecret:    "short",
		MaxConcurrent: 0,
		Storage:       "s3",
		Renderer:      "k8s",
		LogLevel:      "loud",
		LogFormat:     "text",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"AUTH_SECRET", "TOKEN_TTL", "MAX_CONCURRENT_RENDERS", "S3_ENDPOINT", "RENDERER", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %v", want, err)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{"": "<not set>", "abc": "***", "0123456789": "0123...6789"}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
