package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEWSLENS_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort == "" || cfg.CronSpec != "*/30 * * * *" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.RequestTimeout != 15*time.Second || cfg.OpenAI.Timeout != 30*time.Second {
		t.Fatalf("duration defaults not applied: %+v", cfg)
	}
	if len(cfg.Sites()) != 4 {
		t.Fatalf("expected the 4 default sources, got %d", len(cfg.Sites()))
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newslens.yaml")
	yaml := `
app_port: "7000"
log_level: debug
openai:
  model: gpt-4o
  timeout: 45s
sources:
  - id: npr
    base_url: https://www.npr.org
    listing_url: https://feeds.npr.org/1001/rss.xml
    workers: 3
  - id: bbc
    base_url: https://www.bbc.com
    listing_url: https://www.bbc.com/news
    disabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("NEWSLENS_OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want env override 1234", cfg.AppPort)
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.OpenAI.Model != "gpt-4o" || cfg.OpenAI.Timeout != 45*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Fatalf("OpenAI.APIKey = %q", cfg.OpenAI.APIKey)
	}
	sites := cfg.Sites()
	if len(sites) != 1 || sites[0].ID != "npr" || sites[0].Workers != 3 {
		t.Fatalf("unexpected sites %+v", sites)
	}
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "sources:\n  - id: reuters\n    base_url: https://example.com\n    listing_url: https://example.com/news\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown source id")
	}
}

func TestValidateDuplicateSource(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{
		{ID: "bbc", BaseURL: "https://www.bbc.com", ListingURL: "https://www.bbc.com/news"},
		{ID: "BBC", BaseURL: "https://www.bbc.com", ListingURL: "https://www.bbc.com/news"},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate source error")
	}
}

func TestRedactedMasksDSNPassword(t *testing.T) {
	cases := map[string]string{
		"host=db user=app password=s3cret dbname=news":   "host=db user=app password=redacted dbname=news",
		"host=db password='a b' port=5432":               "host=db password=redacted port=5432",
		"postgres://app:s3cret@db:5432/news?sslmode=off": "postgres://app:redacted@db:5432/news?sslmode=off",
		"postgres://app@db/news":                         "postgres://app@db/news",
	}
	for dsn, want := range cases {
		cfg := &Config{PostgresDSN: dsn}
		if got := cfg.Redacted().PostgresDSN; got != want {
			t.Fatalf("Redacted(%q) = %q, want %q", dsn, got, want)
		}
		if cfg.PostgresDSN != dsn {
			t.Fatalf("Redacted modified the original config")
		}
	}
}
