package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/LJTian/NewsLens/internal/collector"
)

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"-"`
	Model   string        `mapstructure:"model" yaml:"model"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SourceConfig describes one site in the sources list.
type SourceConfig struct {
	ID         string            `mapstructure:"id" yaml:"id"`
	BaseURL    string            `mapstructure:"base_url" yaml:"base_url"`
	ListingURL string            `mapstructure:"listing_url" yaml:"listing_url"`
	Pages      int               `mapstructure:"pages" yaml:"pages"`
	Workers    int               `mapstructure:"workers" yaml:"workers"`
	Disabled   bool              `mapstructure:"disabled" yaml:"disabled,omitempty"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Form       map[string]string `mapstructure:"form" yaml:"form,omitempty"`
}

type Config struct {
	AppPort string `mapstructure:"app_port" yaml:"app_port"`
	// BasicAuthUser and BasicAuthPass protect the API when both are set.
	BasicAuthUser string `mapstructure:"basic_auth_user" yaml:"basic_auth_user,omitempty"`
	BasicAuthPass string `mapstructure:"basic_auth_pass" yaml:"-"`

	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`

	CronSpec string `mapstructure:"cron_spec" yaml:"cron_spec"`

	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	Development    bool          `mapstructure:"development" yaml:"development"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`

	OpenAI  OpenAIConfig   `mapstructure:"openai" yaml:"openai"`
	Sources []SourceConfig `mapstructure:"sources" yaml:"sources"`
}

// env names kept from earlier deployments, checked after the NEWSLENS_ ones
var legacyEnv = map[string]string{
	"app_port":        "APP_PORT",
	"postgres_dsn":    "POSTGRES_DSN",
	"redis_addr":      "REDIS_ADDR",
	"cron_spec":       "CRON_SPEC",
	"openai.api_key":  "OPENAI_API_KEY",
	"basic_auth_user": "APP_BASIC_USER",
	"basic_auth_pass": "APP_BASIC_PASS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "9000")
	v.SetDefault("basic_auth_user", "")
	v.SetDefault("basic_auth_pass", "")
	v.SetDefault("postgres_dsn", "host=localhost user=newslens password=newslens dbname=newslens port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("cron_spec", "*/30 * * * *")
	v.SetDefault("log_level", "info")
	v.SetDefault("development", false)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("user_agent", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.timeout", 30*time.Second)
}

// DefaultSources is used when the config file lists no sources.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{ID: "bbc", BaseURL: "https://www.bbc.com", ListingURL: "https://www.bbc.com/news", Pages: 1, Workers: 8},
		{ID: "guardian", BaseURL: "https://www.theguardian.com", ListingURL: "https://www.theguardian.com/world", Pages: 2, Workers: 8},
		{ID: "npr", BaseURL: "https://www.npr.org", ListingURL: "https://feeds.npr.org/1001/rss.xml", Pages: 1, Workers: 8},
		{ID: "unnews", BaseURL: "https://news.un.org", ListingURL: "https://news.un.org/en/views/ajax", Pages: 2, Workers: 4},
	}
}

// Load reads defaults, then the YAML file at path (or $NEWSLENS_CONFIG), then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NEWSLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		primary := "NEWSLENS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, primary, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = getEnv("NEWSLENS_CONFIG", "")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, s := range c.Sources {
		id, err := collector.ParseSourceID(s.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
			continue
		}
		if seen[string(id)] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source %q", i, id))
		}
		seen[string(id)] = true
		if s.BaseURL == "" || s.ListingURL == "" {
			errs = append(errs, fmt.Errorf("sources[%d] (%s): base_url and listing_url are required", i, id))
		}
		if s.Pages < 0 || s.Workers < 0 {
			errs = append(errs, fmt.Errorf("sources[%d] (%s): pages and workers must not be negative", i, id))
		}
	}
	return errors.Join(errs...)
}

// Sites converts the enabled sources into collector sites.
func (c *Config) Sites() []collector.Site {
	out := make([]collector.Site, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Disabled {
			continue
		}
		id, err := collector.ParseSourceID(s.ID)
		if err != nil {
			continue
		}
		out = append(out, collector.Site{
			ID:         id,
			BaseURL:    s.BaseURL,
			ListingURL: s.ListingURL,
			Pages:      s.Pages,
			Workers:    s.Workers,
			Headers:    s.Headers,
			Form:       s.Form,
		})
	}
	return out
}

const redacted = "redacted"

var dsnPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// Redacted returns a copy that is safe to print. Secrets tagged yaml:"-" are
// already skipped by the encoder; the DSN password is masked here.
func (c *Config) Redacted() *Config {
	out := *c
	out.PostgresDSN = maskDSN(c.PostgresDSN)
	return &out
}

// maskDSN hides the password in both URL and key=value DSNs.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return redacted
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		return u.String()
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}"+redacted)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
