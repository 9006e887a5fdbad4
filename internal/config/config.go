package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIURL         string `mapstructure:"api_url"`
	CSRFCookieName string `mapstructure:"csrf_cookie_name"`
	CSRFHeaderName string `mapstructure:"csrf_header_name"`
	CSRFCookiePath string `mapstructure:"csrf_cookie_path"`

	RequestTimeoutMs       int64 `mapstructure:"request_timeout_ms"`
	BootstrapTimeoutMs     int64 `mapstructure:"bootstrap_timeout_ms"`
	BootstrapRetries       int   `mapstructure:"bootstrap_retries"`
	BootstrapBackoffStepMs int64 `mapstructure:"bootstrap_backoff_step_ms"`
	CookiePollAttempts     int   `mapstructure:"cookie_poll_attempts"`
	CookiePollIntervalMs   int64 `mapstructure:"cookie_poll_interval_ms"`
	TokenSettleDelayMs     int64 `mapstructure:"token_settle_delay_ms"`
	RefreshSettleDelayMs   int64 `mapstructure:"refresh_settle_delay_ms"`
	TokenTTLSeconds        int64 `mapstructure:"token_ttl_seconds"`
	TimeoutRetries         int   `mapstructure:"timeout_retries"`
	TimeoutRetryStepMs     int64 `mapstructure:"timeout_retry_step_ms"`
	NetworkLogWindowMs     int64 `mapstructure:"network_log_window_ms"`

	RoutesFile    string `mapstructure:"routes_file"`
	ReportersFile string `mapstructure:"reporters_file"`

	StorageType           string        `mapstructure:"storage_type"`
	CookieDBPath          string        `mapstructure:"cookie_db_path"`
	SessionCookieTTLSecs  int64         `mapstructure:"session_cookie_ttl_seconds"`
	StorageCleanupSeconds int64         `mapstructure:"storage_cleanup_interval_seconds"`
	SessionCookieTTL      time.Duration `mapstructure:"-"`
	StorageCleanup        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "griha")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_url", "http://localhost:8000/api")
	v.SetDefault("csrf_cookie_name", "XSRF-TOKEN")
	v.SetDefault("csrf_header_name", "X-XSRF-TOKEN")
	v.SetDefault("csrf_cookie_path", "/sanctum/csrf-cookie")
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("bootstrap_timeout_ms", 15000)
	v.SetDefault("bootstrap_retries", 2)
	v.SetDefault("bootstrap_backoff_step_ms", 200)
	v.SetDefault("cookie_poll_attempts", 10)
	v.SetDefault("cookie_poll_interval_ms", 100)
	v.SetDefault("token_settle_delay_ms", 300)
	v.SetDefault("refresh_settle_delay_ms", 500)
	v.SetDefault("token_ttl_seconds", 300)
	v.SetDefault("timeout_retries", 2)
	v.SetDefault("timeout_retry_step_ms", 1000)
	v.SetDefault("network_log_window_ms", 30000)
	v.SetDefault("routes_file", "")
	v.SetDefault("reporters_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("cookie_db_path", "./data/cookies.db")
	v.SetDefault("session_cookie_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64(time.Hour/time.Second))

	v.AutomaticEnv()
	// The web frontend exposes the backend base under this name; honour it so both share one .env.
	if err := v.BindEnv("api_url", "GRIHA_API_URL", "NEXT_PUBLIC_API_URL"); err != nil {
		return nil, fmt.Errorf("bind api_url env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.SessionCookieTTL = time.Duration(cfg.SessionCookieTTLSecs) * time.Second
	cfg.StorageCleanup = time.Duration(cfg.StorageCleanupSeconds) * time.Second
	return &cfg, nil
}

func (c *Config) validate() error {
	c.APIURL = strings.TrimSpace(c.APIURL)
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_url %q (must be an absolute http(s) url)", c.APIURL)
	}

	positive := map[string]int64{
		"request_timeout_ms":               c.RequestTimeoutMs,
		"bootstrap_timeout_ms":             c.BootstrapTimeoutMs,
		"bootstrap_backoff_step_ms":        c.BootstrapBackoffStepMs,
		"cookie_poll_interval_ms":          c.CookiePollIntervalMs,
		"token_ttl_seconds":                c.TokenTTLSeconds,
		"timeout_retry_step_ms":            c.TimeoutRetryStepMs,
		"network_log_window_ms":            c.NetworkLogWindowMs,
		"session_cookie_ttl_seconds":       c.SessionCookieTTLSecs,
		"storage_cleanup_interval_seconds": c.StorageCleanupSeconds,
	}
	for key, val := range positive {
		if val <= 0 {
			return fmt.Errorf("invalid %s (must be positive)", key)
		}
	}

	nonNegative := map[string]int64{
		"bootstrap_retries":       int64(c.BootstrapRetries),
		"timeout_retries":         int64(c.TimeoutRetries),
		"cookie_poll_attempts":    int64(c.CookiePollAttempts),
		"token_settle_delay_ms":   c.TokenSettleDelayMs,
		"refresh_settle_delay_ms": c.RefreshSettleDelayMs,
	}
	for key, val := range nonNegative {
		if val < 0 {
			return fmt.Errorf("invalid %s (must not be negative)", key)
		}
	}
	return nil
}

func millis(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// RequestTimeout is the default per-attempt timeout for domain requests.
func (c *Config) RequestTimeout() time.Duration { return millis(c.RequestTimeoutMs) }

// BootstrapTimeout bounds each call to the cookie-issuing endpoint.
func (c *Config) BootstrapTimeout() time.Duration { return millis(c.BootstrapTimeoutMs) }

// BootstrapBackoffStep is multiplied by the attempt number between bootstrap attempts.
func (c *Config) BootstrapBackoffStep() time.Duration { return millis(c.BootstrapBackoffStepMs) }

// CookiePollInterval is the pause between cookie store reads after a bootstrap call.
func (c *Config) CookiePollInterval() time.Duration { return millis(c.CookiePollIntervalMs) }

// TokenSettleDelay is waited after bootstrap before reading the cookie for a mutating request.
func (c *Config) TokenSettleDelay() time.Duration { return millis(c.TokenSettleDelayMs) }

// RefreshSettleDelay is waited after a forced refresh triggered by a 419.
func (c *Config) RefreshSettleDelay() time.Duration { return millis(c.RefreshSettleDelayMs) }

// TokenTTL is how long a successful bootstrap is trusted.
func (c *Config) TokenTTL() time.Duration { return time.Duration(c.TokenTTLSeconds) * time.Second }

// TimeoutRetryStep is multiplied by the retry count between timeout retries.
func (c *Config) TimeoutRetryStep() time.Duration { return millis(c.TimeoutRetryStepMs) }

// NetworkLogWindow suppresses repeated network-failure logs.
func (c *Config) NetworkLogWindow() time.Duration { return millis(c.NetworkLogWindowMs) }
