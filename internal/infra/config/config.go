// Package config provides configuration loading from YAML files.
package config

import (
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Site    SiteConfig    `yaml:"site"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr      string          `yaml:"addr" default:":3000"`
	Hooks     HooksConfig     `yaml:"hooks"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// RateLimitConfig limits player commands per client IP.
type RateLimitConfig struct {
	Disabled       bool `yaml:"disabled"`
	RequestsPerMin int  `yaml:"requests_per_min" default:"600" validate:"gte=1"`
}

// APIConfig represents the episode API configuration.
type APIConfig struct {
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	TimeoutSec       int    `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=120"`
	ListRevalidate   string `yaml:"list_revalidate" default:"8h" validate:"omitempty,duration"`
	DetailRevalidate string `yaml:"detail_revalidate" default:"24h" validate:"omitempty,duration"`
	LatestCount      int    `yaml:"latest_count" default:"2" validate:"gte=0"`
	ListLimit        int    `yaml:"list_limit" default:"12" validate:"gte=1"`
	PrefetchLimit    int    `yaml:"prefetch_limit" default:"2" validate:"gte=0"`
}

// SiteConfig represents page rendering configuration.
type SiteConfig struct {
	Title   string `yaml:"title" default:"Podcastr"`
	Tagline string `yaml:"tagline" default:"O melhor para você ouvir, sempre"`
	Locale  string `yaml:"locale" default:"pt-BR"`
}

// SessionConfig represents visitor session configuration.
type SessionConfig struct {
	CookieName       string `yaml:"cookie_name" default:"podcastr_session"`
	IdleTTL          string `yaml:"idle_ttl" default:"2h" validate:"omitempty,duration"`
	SweepInterval    string `yaml:"sweep_interval" default:"1m" validate:"omitempty,duration"`
	EventBuffer      int    `yaml:"event_buffer" default:"32" validate:"gte=1,lte=1024"`
	SecureCookie     bool   `yaml:"secure_cookie"`
	KeepAliveSeconds int    `yaml:"keepalive_sec" default:"15" validate:"gte=1"`
}

// Load reads path, fills unset fields from their default tags, applies the
// PODCASTR_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := new(Config)
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// envOverrides maps environment variables to the field they replace.
var envOverrides = map[string]func(*Config, string){
	"PODCASTR_API_BASE_URL": func(c *Config, v string) { c.API.BaseURL = v },
	"PODCASTR_ADDR":         func(c *Config, v string) { c.Server.Addr = v },
	"PODCASTR_LOCALE":       func(c *Config, v string) { c.Site.Locale = v },
}

func applyEnv(c *Config, lookup func(string) (string, bool)) {
	for key, set := range envOverrides {
		if v, ok := lookup(key); ok && v != "" {
			set(c, v)
		}
	}
}

var validate = newValidator()

// newValidator reports fields by their yaml path and understands a
// "duration" tag for time.ParseDuration strings.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field constraints and that the API is reached over HTTP.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to parse api.base_url")
	}
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return errors.Newf("api.base_url must be http or https, got %q", u.Scheme)
	}
}

// APITimeout returns the episode API request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ListRevalidate returns how long a fetched episode list stays fresh.
func (c *Config) ListRevalidate() time.Duration {
	return parseDurationOr(c.API.ListRevalidate, 8*time.Hour)
}

// DetailRevalidate returns how long a fetched episode stays fresh.
func (c *Config) DetailRevalidate() time.Duration {
	return parseDurationOr(c.API.DetailRevalidate, 24*time.Hour)
}

// SessionIdleTTL returns how long an unused session is kept.
func (c *Config) SessionIdleTTL() time.Duration {
	return parseDurationOr(c.Session.IdleTTL, 2*time.Hour)
}

// SessionSweepInterval returns how often idle sessions are discarded.
func (c *Config) SessionSweepInterval() time.Duration {
	return parseDurationOr(c.Session.SweepInterval, time.Minute)
}

// KeepAlive returns the event stream keep-alive interval.
func (c *Config) KeepAlive() time.Duration {
	if c.Session.KeepAliveSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Session.KeepAliveSeconds) * time.Second
}

func parseDurationOr(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
