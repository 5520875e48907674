package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Path != "games.jsonl" || cfg.Output.Format != "jsonl" {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Assets.Dir != "img" {
		t.Fatalf("expected img dir default, got %q", cfg.Assets.Dir)
	}
	if cfg.HTTP.Timeout != 30*time.Second || cfg.HTTP.MinInterval != 700*time.Millisecond {
		t.Fatalf("unexpected http timing defaults: %+v", cfg.HTTP)
	}
	if cfg.HTTP.MaxAttempts != 3 || cfg.HTTP.BackoffFactor != 2.0 || !cfg.HTTP.RespectRobots {
		t.Fatalf("unexpected retry defaults: %+v", cfg.HTTP)
	}
	if cfg.Catalog.BaseURL != "https://gamedistribution.com" {
		t.Fatalf("unexpected base url %q", cfg.Catalog.BaseURL)
	}
	if cfg.Resolver.ImagePrecedence != "structured" {
		t.Fatalf("unexpected precedence %q", cfg.Resolver.ImagePrecedence)
	}
	if cfg.DB.Table != "game_records" || cfg.DB.RunTable != "capture_runs" {
		t.Fatalf("unexpected table defaults: %+v", cfg.DB)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
targets:
  input_file: targets.txt
output:
  path: out/games.json
  format: json
assets:
  dir: covers
http:
  timeout: 5s
  min_interval: 250ms
  max_attempts: 5
  backoff_factor: 1.5
  host_rps: 2
  respect_robots: false
resolver:
  image_precedence: opengraph
logging:
  development: true
  level: debug
storage:
  gcs_bucket: bucket
db:
  dsn: postgres://localhost/catalog
pubsub:
  project_id: proj
  topic_name: captures
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Targets.InputFile != "targets.txt" {
		t.Fatalf("expected input file override, got %q", cfg.Targets.InputFile)
	}
	if cfg.Output.Path != "out/games.json" || cfg.Output.Format != "json" {
		t.Fatalf("expected output overrides: %+v", cfg.Output)
	}
	if cfg.HTTP.Timeout != 5*time.Second || cfg.HTTP.MinInterval != 250*time.Millisecond {
		t.Fatalf("expected duration overrides: %+v", cfg.HTTP)
	}
	if cfg.HTTP.MaxAttempts != 5 || cfg.HTTP.BackoffFactor != 1.5 || cfg.HTTP.HostRPS != 2 {
		t.Fatalf("expected retry overrides: %+v", cfg.HTTP)
	}
	if cfg.HTTP.RespectRobots {
		t.Fatal("expected robots override to apply")
	}
	if cfg.Resolver.ImagePrecedence != "opengraph" {
		t.Fatalf("expected precedence override, got %q", cfg.Resolver.ImagePrecedence)
	}
	if !cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if cfg.Storage.GCSBucket != "bucket" || cfg.Storage.GCSPrefix != "covers" {
		t.Fatalf("expected storage values: %+v", cfg.Storage)
	}
	if cfg.DB.DSN == "" || cfg.PubSub.TopicName != "captures" {
		t.Fatalf("expected mirror settings to load: %+v %+v", cfg.DB, cfg.PubSub)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  path: from-file.jsonl\nhttp:\n  max_attempts: 7\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	flags := pflag.NewFlagSet("capture", pflag.ContinueOnError)
	flags.String("output", "games.jsonl", "")
	flags.Int("retries", 3, "")
	flags.Duration("rate-limit", 700*time.Millisecond, "")
	if err := flags.Parse([]string{"--output", "from-flag.jsonl", "--rate-limit", "1s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Path != "from-flag.jsonl" {
		t.Fatalf("expected flag to win, got %q", cfg.Output.Path)
	}
	if cfg.HTTP.MaxAttempts != 7 {
		t.Fatalf("expected unset flag to defer to file, got %d", cfg.HTTP.MaxAttempts)
	}
	if cfg.HTTP.MinInterval != time.Second {
		t.Fatalf("expected rate-limit flag to apply, got %v", cfg.HTTP.MinInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_HTTP_MAX_ATTEMPTS", "9")
	t.Setenv("CATALOG_CATALOG_BASE_URL", "https://staging.example.com")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.MaxAttempts != 9 {
		t.Fatalf("expected env attempts 9, got %d", cfg.HTTP.MaxAttempts)
	}
	if cfg.Catalog.BaseURL != "https://staging.example.com" {
		t.Fatalf("expected env base url, got %q", cfg.Catalog.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty output", mutate: func(c *Config) { c.Output.Path = " " }, want: "output.path"},
		{name: "bad format", mutate: func(c *Config) { c.Output.Format = "csv" }, want: "output.format"},
		{name: "empty img dir", mutate: func(c *Config) { c.Assets.Dir = "" }, want: "assets.dir"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTP.Timeout = 0 }, want: "http.timeout"},
		{name: "negative interval", mutate: func(c *Config) { c.HTTP.MinInterval = -time.Second }, want: "http.min_interval"},
		{name: "zero attempts", mutate: func(c *Config) { c.HTTP.MaxAttempts = 0 }, want: "http.max_attempts"},
		{name: "zero backoff", mutate: func(c *Config) { c.HTTP.BackoffFactor = 0 }, want: "http.backoff_factor"},
		{name: "negative rps", mutate: func(c *Config) { c.HTTP.HostRPS = -1 }, want: "http.host_rps"},
		{name: "empty agent", mutate: func(c *Config) { c.HTTP.UserAgent = "" }, want: "http.user_agent"},
		{name: "relative base", mutate: func(c *Config) { c.Catalog.BaseURL = "/games" }, want: "catalog.base_url"},
		{name: "bad precedence", mutate: func(c *Config) { c.Resolver.ImagePrecedence = "random" }, want: "resolver.image_precedence"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
