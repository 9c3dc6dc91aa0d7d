package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected default http timeout 10s, got %s", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.MaxRetries)
	}
	if cfg.ReportLoadTimeout != 10*time.Second {
		t.Errorf("expected default report load timeout 10s, got %s", cfg.ReportLoadTimeout)
	}
	if cfg.JWTAccessTTL != 15*time.Minute {
		t.Errorf("expected default access TTL 15m, got %s", cfg.JWTAccessTTL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REMOTE_SYNC_URL", "https://sync.example.com")
	t.Setenv("INSIGHT_CACHE_TTL", "30s")
	t.Setenv("MAX_RETRIES", "5")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.RemoteSyncURL != "https://sync.example.com" {
		t.Errorf("unexpected remote sync URL: %s", cfg.RemoteSyncURL)
	}
	if cfg.InsightCacheTTL != 30*time.Second {
		t.Errorf("expected cache TTL 30s, got %s", cfg.InsightCacheTTL)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected max retries 5, got %d", cfg.MaxRetries)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("HTTP_TIMEOUT", "soon")

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.Port)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected fallback timeout 10s, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment line\n\nDOTENV_TEST_KEY=from-file\nDOTENV_QUOTED=\"quoted value\"\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("DOTENV_TEST_KEY", "")
	t.Setenv("DOTENV_QUOTED", "")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("DOTENV_TEST_KEY"); got != "from-file" {
		t.Errorf("expected 'from-file', got %q", got)
	}
	if got := os.Getenv("DOTENV_QUOTED"); got != "quoted value" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_EXISTING=file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("DOTENV_EXISTING", "env")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("DOTENV_EXISTING"); got != "env" {
		t.Errorf("expected env to win, got %q", got)
	}
}
