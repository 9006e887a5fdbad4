package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"
)

const handleKey = "csrf-bootstrap"

// ErrTokenNotIssued is returned when the cookie endpoint answered but the
// token cookie never became readable.
var ErrTokenNotIssued = errors.New("csrf cookie not present after bootstrap")

// bootstrapCall is the handle shared by every caller waiting on one bootstrap.
type bootstrapCall struct {
	done chan struct{}
	err  error
}

func (c *bootstrapCall) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TokenBootstrapper makes sure the CSRF cookie exists before a mutating
// request, issuing at most one cookie-endpoint call at a time.
type TokenBootstrapper struct {
	transport Transport
	jar       CookieStore
	endpoint  string
	cookieURL *url.URL
	opts      Options
	log       Logger

	mu      sync.Mutex
	handles *ttlcache.Cache[string, *bootstrapCall]
	// bootstrapped is set after the first success; from then on an expired
	// handle means the cookie is no longer trusted without a fresh bootstrap.
	bootstrapped bool
}

// NewTokenBootstrapper builds a bootstrapper that calls the cookie endpoint
// derived from opts.BaseURL through transport and reads the token from jar.
func NewTokenBootstrapper(transport Transport, jar CookieStore, opts Options, log Logger) (*TokenBootstrapper, error) {
	if transport == nil {
		return nil, errors.New("bootstrap transport must not be nil")
	}
	if jar == nil {
		return nil, errors.New("cookie store must not be nil")
	}
	return newTokenBootstrapper(transport, jar, opts.withDefaults(), log)
}

// newTokenBootstrapper expects opts to be resolved already.
func newTokenBootstrapper(transport Transport, jar CookieStore, opts Options, log Logger) (*TokenBootstrapper, error) {
	endpoint, err := CookieURL(opts.BaseURL, opts.CookiePath)
	if err != nil {
		return nil, fmt.Errorf("derive cookie endpoint: %w", err)
	}
	cookieURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &TokenBootstrapper{
		transport: transport,
		jar:       jar,
		endpoint:  endpoint,
		cookieURL: cookieURL,
		opts:      opts,
		log:       ensureLogger(log),
		handles: ttlcache.New[string, *bootstrapCall](
			ttlcache.WithDisableTouchOnHit[string, *bootstrapCall](),
		),
	}, nil
}

// Endpoint returns the cookie-issuing URL.
func (b *TokenBootstrapper) Endpoint() string { return b.endpoint }

// Token reads the CSRF token from the cookie store; empty when absent.
func (b *TokenBootstrapper) Token() string {
	v, _ := LookupCookie(b.jar.Cookies(b.cookieURL), b.opts.CookieName)
	return v
}

// Ensure makes the CSRF cookie available.
//
// Without forceRefresh it returns at once when a live bootstrap handle exists
// (joining it if still in flight) or when a cookie is present that no earlier
// bootstrap of this instance has vouched for. Otherwise it starts a bootstrap
// that every concurrent caller shares. The bootstrap itself is not bound to
// ctx; ctx only limits how long this caller waits.
func (b *TokenBootstrapper) Ensure(ctx context.Context, forceRefresh bool) error {
	b.mu.Lock()
	if !forceRefresh {
		if item := b.handles.Get(handleKey); item != nil {
			call := item.Value()
			b.mu.Unlock()
			return call.wait(ctx)
		}
		if !b.bootstrapped && b.Token() != "" {
			b.mu.Unlock()
			return nil
		}
	}

	call := &bootstrapCall{done: make(chan struct{})}
	b.handles.Set(handleKey, call, ttlcache.NoTTL)
	b.mu.Unlock()

	go b.run(call)
	return call.wait(ctx)
}

func (b *TokenBootstrapper) run(call *bootstrapCall) {
	ctx := context.Background()
	op := func() (struct{}, error) { return struct{}{}, b.attempt(ctx) }
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linearBackOff{step: b.opts.BootstrapBackoffStep}),
		backoff.WithMaxTries(uint(b.opts.BootstrapRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.log.WarnObj("csrf bootstrap attempt failed", "csrf_bootstrap", map[string]any{
				"endpoint": b.endpoint,
				"error":    err.Error(),
				"retry_in": next.String(),
			})
		}),
	)

	b.mu.Lock()
	current := b.handles.Get(handleKey)
	owned := current != nil && current.Value() == call
	if err != nil {
		if owned {
			b.handles.Delete(handleKey)
		}
	} else {
		b.bootstrapped = true
		if owned {
			b.handles.Set(handleKey, call, b.opts.TokenTTL)
		}
	}
	b.mu.Unlock()

	if err != nil {
		b.log.ErrorObj("csrf bootstrap failed", "csrf_bootstrap", map[string]any{
			"endpoint": b.endpoint,
			"attempts": b.opts.BootstrapRetries + 1,
			"error":    err.Error(),
		})
		call.err = fmt.Errorf("csrf bootstrap: %w", err)
	} else {
		b.log.DebugObj("csrf bootstrap succeeded", "csrf_bootstrap", map[string]any{
			"endpoint": b.endpoint,
			"ttl":      b.opts.TokenTTL.String(),
		})
	}
	close(call.done)
}

// attempt performs one cookie-endpoint call and waits for the cookie to show up.
func (b *TokenBootstrapper) attempt(ctx context.Context) error {
	attemptCtx, cancel := context.WithTimeout(ctx, b.opts.BootstrapTimeout)
	defer cancel()

	resp, err := b.transport.Send(attemptCtx, &Request{Method: http.MethodGet, URL: b.endpoint})
	if err != nil {
		return fmt.Errorf("request csrf cookie: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("request csrf cookie: status %d", status)
	}

	for i := 0; i < b.opts.CookiePollAttempts; i++ {
		if b.Token() != "" {
			return nil
		}
		if err := sleepCtx(ctx, b.opts.CookiePollInterval); err != nil {
			return backoff.Permanent(err)
		}
	}
	if b.Token() != "" {
		return nil
	}
	return ErrTokenNotIssued
}

// linearBackOff waits step, 2*step, 3*step... between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return l.step * time.Duration(l.attempt)
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// sleepCtx pauses for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
