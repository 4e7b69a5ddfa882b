// Package config loads application configuration from environment
// variables, an optional YAML file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable Load reads.
const EnvPrefix = "ACTIVITYREPORT"

// Configuration keys. Each maps to ACTIVITYREPORT_<KEY> in the environment.
const (
	KeyConfigFile        = "config"
	KeyProvider          = "provider"
	KeyBaseURL           = "base_url"
	KeyToken             = "token"
	KeyCachePath         = "cache_path"
	KeyCacheBackend      = "cache_backend"
	KeyCacheDuration     = "cache_duration"
	KeyListenAddr        = "listen_addr"
	KeySweepSchedule     = "sweep_schedule"
	KeyRequestTimeout    = "request_timeout"
	KeyLookupConcurrency = "lookup_concurrency"
)

// Configuration errors reported before any run.
var (
	ErrMissingCredentials = errors.New("missing access token: set ACTIVITYREPORT_TOKEN")
	ErrMissingBaseURL     = errors.New("missing instance URL: set ACTIVITYREPORT_BASE_URL")
)

// Provider names the remote API the activity is read from.
type Provider string

const (
	ProviderGitLab Provider = "gitlab"
	ProviderGitHub Provider = "github"
)

// DefaultBaseURL returns the public API root of p, or "" when p has none.
func (p Provider) DefaultBaseURL() string {
	switch p {
	case ProviderGitLab:
		return "https://gitlab.com/api/v4"
	case ProviderGitHub:
		return "https://api.github.com/"
	}
	return ""
}

// CacheBackend names the persistence used by the response cache.
type CacheBackend string

const (
	BackendJSON   CacheBackend = "json"
	BackendSQLite CacheBackend = "sqlite"
)

// DefaultCachePath returns the store location used when none is configured.
func (b CacheBackend) DefaultCachePath() string {
	if b == BackendSQLite {
		return "cache/activity-cache.db"
	}
	return "cache/activity-cache.json"
}

// Config holds the application configuration.
type Config struct {
	Provider          Provider
	BaseURL           string
	Token             string
	CachePath         string
	CacheBackend      CacheBackend
	CacheDuration     time.Duration
	ListenAddr        string
	SweepSchedule     string
	RequestTimeout    time.Duration
	LookupConcurrency int
}

// NewViper returns a viper instance with defaults and environment binding
// configured. Callers may bind command-line flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProvider, string(ProviderGitLab))
	v.SetDefault(KeyCacheBackend, string(BackendJSON))
	v.SetDefault(KeyCacheDuration, "24h")
	v.SetDefault(KeyListenAddr, "127.0.0.1:8080")
	v.SetDefault(KeySweepSchedule, "@hourly")
	v.SetDefault(KeyRequestTimeout, "5s")
	v.SetDefault(KeyLookupConcurrency, 4)
	return v
}

// Load reads configuration from v, which defaults to NewViper(). When the
// config key names a file, it is read first; environment variables and
// bound flags take precedence over it. The result is not validated.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	cacheDuration, err := durationKey(v, KeyCacheDuration)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := durationKey(v, KeyRequestTimeout)
	if err != nil {
		return nil, err
	}
	concurrency, err := cast.ToIntE(v.Get(KeyLookupConcurrency))
	if err != nil {
		return nil, fmt.Errorf("%s has invalid integer %q: %w", envName(KeyLookupConcurrency), v.GetString(KeyLookupConcurrency), err)
	}

	provider := Provider(strings.ToLower(v.GetString(KeyProvider)))
	backend := CacheBackend(strings.ToLower(v.GetString(KeyCacheBackend)))

	baseURL := v.GetString(KeyBaseURL)
	if baseURL == "" {
		baseURL = provider.DefaultBaseURL()
	}
	cachePath := v.GetString(KeyCachePath)
	if cachePath == "" {
		cachePath = backend.DefaultCachePath()
	}

	return &Config{
		Provider:          provider,
		BaseURL:           strings.TrimSpace(baseURL),
		Token:             strings.TrimSpace(v.GetString(KeyToken)),
		CachePath:         cachePath,
		CacheBackend:      backend,
		CacheDuration:     cacheDuration,
		ListenAddr:        v.GetString(KeyListenAddr),
		SweepSchedule:     v.GetString(KeySweepSchedule),
		RequestTimeout:    requestTimeout,
		LookupConcurrency: concurrency,
	}, nil
}

// Validate reports the first configuration error that would prevent a run.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGitLab, ProviderGitHub:
	default:
		return fmt.Errorf("%s must be gitlab or github, got %q", envName(KeyProvider), c.Provider)
	}

	if c.Token == "" {
		return ErrMissingCredentials
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", envName(KeyBaseURL), c.BaseURL)
	}

	switch c.CacheBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("%s must be json or sqlite, got %q", envName(KeyCacheBackend), c.CacheBackend)
	}

	if c.CacheDuration <= 0 {
		return fmt.Errorf("%s must be positive, got %s", envName(KeyCacheDuration), c.CacheDuration)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", envName(KeyRequestTimeout), c.RequestTimeout)
	}
	if c.LookupConcurrency <= 0 {
		return fmt.Errorf("%s must be positive, got %d", envName(KeyLookupConcurrency), c.LookupConcurrency)
	}
	return nil
}

func durationKey(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", envName(key), v.GetString(key), err)
	}
	return d, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}
