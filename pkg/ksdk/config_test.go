package ksdk

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_ProjectConfig(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	projectConfig := `
baseUrl: http://example.com:8000/
pollInterval: 500ms
quality: high
`
	os.WriteFile("kino.yaml", []byte(projectConfig), 0644)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.BaseURL != "http://example.com:8000" {
		t.Errorf("Expected baseUrl http://example.com:8000, got %s", cfg.BaseURL)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("Expected pollInterval 500ms, got %s", cfg.PollInterval)
	}
	if cfg.Quality != QualityHigh {
		t.Errorf("Expected quality high, got %s", cfg.Quality)
	}
}

func TestLoadConfig_LocalOverride(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	projectConfig := `
baseUrl: http://example.com:8000
outputFormat: gif
`
	os.WriteFile("kino.yaml", []byte(projectConfig), 0644)

	os.MkdirAll(ConfigRoot, 0755)
	localConfig := `
baseUrl: http://localhost:8080
`
	os.WriteFile(filepath.Join(ConfigRoot, "config.yaml"), []byte(localConfig), 0644)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Local override should win
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected baseUrl http://localhost:8080 (from local override), got %s", cfg.BaseURL)
	}
	if cfg.OutputFormat != "gif" {
		t.Errorf("Expected outputFormat gif (from project config), got %s", cfg.OutputFormat)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected default baseUrl %s, got %s", DefaultBaseURL, cfg.BaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("Expected default pollInterval 2s, got %s", cfg.PollInterval)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default requestTimeout 30s, got %s", cfg.RequestTimeout)
	}
	if cfg.DownloadTimeout != 5*time.Minute {
		t.Errorf("Expected default downloadTimeout 5m, got %s", cfg.DownloadTimeout)
	}
	if cfg.OutputFormat != "mp4" || cfg.Quality != QualityMedium {
		t.Errorf("Expected mp4/medium defaults, got %s/%s", cfg.OutputFormat, cfg.Quality)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	customConfig := `
baseUrl: http://custom.com:9000
requestTimeout: 10s
`
	customPath := filepath.Join(tempDir, "custom-config.yaml")
	os.WriteFile(customPath, []byte(customConfig), 0644)

	cfg, err := LoadConfig(customPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.BaseURL != "http://custom.com:9000" {
		t.Errorf("Expected baseUrl http://custom.com:9000, got %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("Expected requestTimeout 10s, got %s", cfg.RequestTimeout)
	}
	if cfg.ConfigFileUsed() != customPath {
		t.Errorf("Expected ConfigFileUsed %s, got %s", customPath, cfg.ConfigFileUsed())
	}
}

func TestLoadConfig_Env(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	t.Setenv("KINO_POLLINTERVAL", "250ms")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected pollInterval from env, got %s", cfg.PollInterval)
	}
}

func TestLoadConfig_RejectsBadQuality(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	os.WriteFile("kino.yaml", []byte("quality: ultra\n"), 0644)

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected an error for unknown quality")
	}
}
