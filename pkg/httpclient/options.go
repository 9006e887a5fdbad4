package httpclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "http://localhost:8000/api"
	DefaultCookieName = "XSRF-TOKEN"
	DefaultHeaderName = "X-XSRF-TOKEN"
	DefaultCookiePath = "/sanctum/csrf-cookie"

	defaultRequestTimeout       = 30 * time.Second
	defaultBootstrapTimeout     = 15 * time.Second
	defaultBootstrapRetries     = 2
	defaultBootstrapBackoffStep = 200 * time.Millisecond
	defaultCookiePollAttempts   = 10
	defaultCookiePollInterval   = 100 * time.Millisecond
	defaultTokenSettleDelay     = 300 * time.Millisecond
	defaultRefreshSettleDelay   = 500 * time.Millisecond
	defaultTokenTTL             = 5 * time.Minute
	defaultTimeoutRetries       = 2
	defaultTimeoutRetryStep     = time.Second
	defaultNetworkLogWindow     = 30 * time.Second
)

// Options tunes the pipeline. Zero values fall back to the defaults above;
// use a negative delay to disable it explicitly.
type Options struct {
	BaseURL    string
	CookieName string
	HeaderName string
	CookiePath string

	RequestTimeout time.Duration

	BootstrapTimeout     time.Duration
	BootstrapRetries     int
	BootstrapBackoffStep time.Duration
	CookiePollAttempts   int
	CookiePollInterval   time.Duration
	TokenSettleDelay     time.Duration
	RefreshSettleDelay   time.Duration
	TokenTTL             time.Duration

	TimeoutRetries   int
	TimeoutRetryStep time.Duration

	NetworkLogWindow time.Duration

	// resolved marks options that already went through withDefaults, where
	// zero means disabled rather than unset.
	resolved bool
}

func (o Options) withDefaults() Options {
	if o.resolved {
		return o
	}
	o.resolved = true
	o.BaseURL = strings.TrimSpace(o.BaseURL)
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.HeaderName == "" {
		o.HeaderName = DefaultHeaderName
	}
	if o.CookiePath == "" {
		o.CookiePath = DefaultCookiePath
	}
	o.RequestTimeout = durationOr(o.RequestTimeout, defaultRequestTimeout)
	o.BootstrapTimeout = durationOr(o.BootstrapTimeout, defaultBootstrapTimeout)
	o.BootstrapBackoffStep = durationOr(o.BootstrapBackoffStep, defaultBootstrapBackoffStep)
	o.CookiePollInterval = durationOr(o.CookiePollInterval, defaultCookiePollInterval)
	o.TokenSettleDelay = durationOr(o.TokenSettleDelay, defaultTokenSettleDelay)
	o.RefreshSettleDelay = durationOr(o.RefreshSettleDelay, defaultRefreshSettleDelay)
	o.TokenTTL = durationOr(o.TokenTTL, defaultTokenTTL)
	o.TimeoutRetryStep = durationOr(o.TimeoutRetryStep, defaultTimeoutRetryStep)
	o.NetworkLogWindow = durationOr(o.NetworkLogWindow, defaultNetworkLogWindow)
	o.BootstrapRetries = countOr(o.BootstrapRetries, defaultBootstrapRetries)
	o.CookiePollAttempts = countOr(o.CookiePollAttempts, defaultCookiePollAttempts)
	o.TimeoutRetries = countOr(o.TimeoutRetries, defaultTimeoutRetries)
	return o
}

func durationOr(v, def time.Duration) time.Duration {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	default:
		return v
	}
}

func countOr(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	default:
		return v
	}
}

// CookieURL derives the cookie-issuing endpoint from the API base by
// stripping a trailing /api segment.
func CookieURL(baseURL, cookiePath string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	base = strings.TrimSuffix(base, "/api")
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", baseURL)
	}
	if !strings.HasPrefix(cookiePath, "/") {
		cookiePath = "/" + cookiePath
	}
	return base + cookiePath, nil
}
