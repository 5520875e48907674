// Package config loads and validates capture configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/dataset"
	collyfetcher "github.com/JakeFAU/gamecatalog/internal/fetcher/colly"
	"github.com/JakeFAU/gamecatalog/internal/resolver"
)

// EnvPrefix is prepended to every environment override, e.g. CATALOG_HTTP_TIMEOUT.
const EnvPrefix = "CATALOG"

// Config captures all capture knobs loaded via Viper.
type Config struct {
	Targets  TargetsConfig  `mapstructure:"targets"`
	Output   OutputConfig   `mapstructure:"output"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// TargetsConfig locates targets outside the command line.
type TargetsConfig struct {
	InputFile string `mapstructure:"input_file"`
}

// OutputConfig controls where the dataset lives and how it is shaped.
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// AssetsConfig sets the cover image directory.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// HTTPConfig configures fetch pacing and retry behavior.
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	MinInterval   time.Duration `mapstructure:"min_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	HostRPS       float64       `mapstructure:"host_rps"`
	HostBurst     int           `mapstructure:"host_burst"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
	RespectRobots bool          `mapstructure:"respect_robots"`
}

// CatalogConfig describes the catalog site being captured.
type CatalogConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	EmbedHost string `mapstructure:"embed_host"`
}

// ResolverConfig tunes metadata resolution.
type ResolverConfig struct {
	ImagePrecedence string `mapstructure:"image_precedence"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig points at an optional Prometheus textfile written at run end.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// StorageConfig enables the optional GCS asset mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls the optional Postgres record mirror.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	RunTable string `mapstructure:"run_table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for capture notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// FlagKeys maps command-line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"input-file": "targets.input_file",
	"output":     "output.path",
	"format":     "output.format",
	"img-dir":    "assets.dir",
	"timeout":    "http.timeout",
	"rate-limit": "http.min_interval",
	"retries":    "http.max_attempts",
	"backoff":    "http.backoff_factor",
	"user-agent": "http.user_agent",
	"base-url":   "catalog.base_url",
	"dev":        "logging.development",
}

// Load builds a Config from defaults, an optional file, the environment, and
// any flags in FlagKeys that were set on flags. Flags win over everything.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.path", "games.jsonl")
	v.SetDefault("output.format", string(dataset.FormatJSONL))
	v.SetDefault("assets.dir", "img")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("http.min_interval", 700*time.Millisecond)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_factor", 2.0)
	v.SetDefault("http.host_rps", 0)
	v.SetDefault("http.host_burst", 1)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("catalog.base_url", catalog.DefaultBaseURL)
	v.SetDefault("catalog.embed_host", resolver.DefaultEmbedHost)
	v.SetDefault("resolver.image_precedence", string(resolver.ImageStructuredFirst))
	v.SetDefault("logging.development", false)
	v.SetDefault("db.table", "game_records")
	v.SetDefault("db.run_table", "capture_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.gcs_prefix", "covers")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Output.Path) == "" {
		return errors.New("output.path must be set")
	}
	if _, err := dataset.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if strings.TrimSpace(c.Assets.Dir) == "" {
		return errors.New("assets.dir must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MinInterval < 0 {
		return errors.New("http.min_interval must be >= 0")
	}
	if c.HTTP.MaxAttempts < 1 {
		return errors.New("http.max_attempts must be >= 1")
	}
	if c.HTTP.BackoffFactor <= 0 {
		return errors.New("http.backoff_factor must be > 0")
	}
	if c.HTTP.HostRPS < 0 {
		return errors.New("http.host_rps must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return errors.New("http.max_body_bytes must be >= 0")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return errors.New("http.user_agent must be set")
	}
	base, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("catalog.base_url must be an absolute URL, got %q", c.Catalog.BaseURL)
	}
	if _, err := resolver.ParseImagePrecedence(c.Resolver.ImagePrecedence); err != nil {
		return fmt.Errorf("resolver.image_precedence: %w", err)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
