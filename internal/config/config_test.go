package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Cache.SweepInterval != 5*time.Minute || cfg.Newsletter.Pause != 100*time.Millisecond {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RateLimit.Backend != "memory" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected backends %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  site_url: "https://blog.example.com"
notion:
  token: "file-token"
  database_id: "db-1"
cache:
  sweep_interval: 1m
newsletter:
  pause: 250ms
`)
	t.Setenv("NOTION_TOKEN", "env-token")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Notion.Token != "env-token" || cfg.Notion.DatabaseID != "db-1" {
		t.Fatalf("env should override file: %+v", cfg.Notion)
	}
	if cfg.Cache.SweepInterval != time.Minute || cfg.Newsletter.Pause != 250*time.Millisecond {
		t.Fatalf("durations not parsed: %v %v", cfg.Cache.SweepInterval, cfg.Newsletter.Pause)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("redis db = %d", cfg.Redis.DB)
	}
	if got := strings.Join(cfg.Origins(), ","); got != "https://a.test,https://b.test,https://blog.example.com" {
		t.Fatalf("origins = %q", got)
	}
}

func TestLoadPortEnv(t *testing.T) {
	t.Setenv("PORT", "3001")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":3001" {
		t.Fatalf("addr = %q, want :3001", cfg.Server.Addr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("NEWSLETTER_PAUSE", "soon")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "NEWSLETTER_PAUSE") {
		t.Fatalf("expected NEWSLETTER_PAUSE error, got %v", err)
	}

	if _, err := Load(writeFile(t, "server: [")); err == nil {
		t.Fatalf("expected YAML error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestDevelopmentOrigins(t *testing.T) {
	cfg := Default()
	cfg.Server.Environment = "development"
	origins := strings.Join(cfg.Origins(), ",")
	if !strings.Contains(origins, "http://localhost:3000") {
		t.Fatalf("development should allow localhost, got %q", origins)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"NOTION_TOKEN", "NOTION_DATABASE_ID", "WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("validation error %q missing %s", err, want)
		}
	}

	cfg.Notion.Token = "t"
	cfg.Notion.DatabaseID = "d"
	cfg.Auth.WebhookSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.RateLimit.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected backend error")
	}
}
