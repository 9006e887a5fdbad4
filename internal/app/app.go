package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adda-Baaj/griha/internal/config"
	"github.com/Adda-Baaj/griha/internal/logger"
	"github.com/Adda-Baaj/griha/internal/storage"
	"github.com/Adda-Baaj/griha/pkg/httpclient"
	"github.com/Adda-Baaj/griha/pkg/reporters"
	"github.com/Adda-Baaj/griha/pkg/routes"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	reportFlushTimeout = 5 * time.Second
)

// App is the griha runtime: a pipeline client wired to the persisted cookie
// jar, the routes policy and the failure reporters.
type App struct {
	cfg    *config.Config
	client *httpclient.Client
	store  storage.Store
	jar    *storage.Jar
	fanout *reporters.Fanout
	nav    *ConsoleNavigator
	log    logger.Logger
}

// New builds the runtime from config. currentPage is the frontend page the
// requests are issued from; it drives 401 redirects.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, currentPage string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	policy := routes.DefaultPolicy()
	if cfg.RoutesFile != "" {
		p, err := routes.LoadPolicy(cfg.RoutesFile)
		if err != nil {
			return nil, fmt.Errorf("load routes policy: %w", err)
		}
		policy = p
	}
	log.InfoObj("routes policy loaded", "routes_meta", map[string]any{
		"login_path":         policy.LoginPath,
		"protected_prefixes": policy.ProtectedPrefixes,
	})

	fanout, err := buildReporters(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		SessionTTL:      cfg.SessionCookieTTL,
		CleanupInterval: cfg.StorageCleanup,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.CookieDBPath, storeOpts)
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                       cfg.StorageType,
		"path":                       cfg.CookieDBPath,
		"session_cookie_ttl_seconds": int(cfg.SessionCookieTTL.Seconds()),
		"cleanup_interval_seconds":   int(cfg.StorageCleanup.Seconds()),
	})

	jar, err := storage.NewJar(store, log)
	if err != nil {
		store.Close()
		fanout.Close()
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}

	nav := NewConsoleNavigator(currentPage, log)
	deps := httpclient.Deps{
		Jar:       jar,
		Navigator: nav,
		Routes:    &policy,
		Logger:    log,
	}
	if fanout.Size() > 0 {
		deps.Reporter = fanout
	}
	if z, ok := log.(*logger.ZapLogger); ok {
		deps.RestyLogger = z.Sugar()
	}

	client, err := httpclient.NewClient(ClientOptions(cfg), deps)
	if err != nil {
		store.Close()
		fanout.Close()
		return nil, fmt.Errorf("init client: %w", err)
	}

	return &App{
		cfg:    cfg,
		client: client,
		store:  store,
		jar:    jar,
		fanout: fanout,
		nav:    nav,
		log:    log,
	}, nil
}

func buildReporters(ctx context.Context, cfg *config.Config, log logger.Logger) (*reporters.Fanout, error) {
	if cfg.ReportersFile == "" {
		return reporters.NewFanout(nil, log), nil
	}

	reg, err := reporters.LoadRegistry(cfg.ReportersFile)
	if err != nil {
		return nil, fmt.Errorf("load reporters registry: %w", err)
	}
	enabled := reg.Enabled()
	reps, err := reporters.BuildAll(ctx, reporters.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build reporters: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, rc := range enabled {
		summaries = append(summaries, map[string]string{"id": rc.ID, "type": rc.Type})
	}
	log.InfoObj("reporters registry loaded", "reporters_meta", map[string]any{
		"count":     len(summaries),
		"reporters": summaries,
	})
	return reporters.NewFanout(reps, log), nil
}

// ClientOptions maps config onto pipeline options. Config allows zero for
// the settle delays, which the pipeline reads as "use the default", so zero
// is translated to disabled.
func ClientOptions(cfg *config.Config) httpclient.Options {
	return httpclient.Options{
		BaseURL:              cfg.APIURL,
		CookieName:           cfg.CSRFCookieName,
		HeaderName:           cfg.CSRFHeaderName,
		CookiePath:           cfg.CSRFCookiePath,
		RequestTimeout:       cfg.RequestTimeout(),
		BootstrapTimeout:     cfg.BootstrapTimeout(),
		BootstrapRetries:     disabledIfZero(cfg.BootstrapRetries),
		BootstrapBackoffStep: cfg.BootstrapBackoffStep(),
		CookiePollAttempts:   disabledIfZero(cfg.CookiePollAttempts),
		CookiePollInterval:   cfg.CookiePollInterval(),
		TokenSettleDelay:     disabledIfZero(cfg.TokenSettleDelay()),
		RefreshSettleDelay:   disabledIfZero(cfg.RefreshSettleDelay()),
		TokenTTL:             cfg.TokenTTL(),
		TimeoutRetries:       disabledIfZero(cfg.TimeoutRetries),
		TimeoutRetryStep:     cfg.TimeoutRetryStep(),
		NetworkLogWindow:     cfg.NetworkLogWindow(),
	}
}

func disabledIfZero[T ~int | ~int64](v T) T {
	if v == 0 {
		return -1
	}
	return v
}

// Client exposes the underlying pipeline client.
func (a *App) Client() *httpclient.Client { return a.client }

// Navigations lists the login redirects requested so far.
func (a *App) Navigations() []string { return a.nav.Targets() }

// EnsureToken runs the CSRF bootstrap and returns the token now in the jar.
func (a *App) EnsureToken(ctx context.Context, force bool) (string, error) {
	if err := a.client.EnsureToken(ctx, force); err != nil {
		return "", err
	}
	token := a.client.Tokens().Token()
	if token == "" {
		return "", httpclient.ErrTokenNotIssued
	}
	return token, nil
}

// Call describes one request issued from the command line.
type Call struct {
	Method string
	Path   string
	// JSON is sent verbatim as an application/json body.
	JSON   string
	Fields map[string]string
	// Files maps form field names to local file paths.
	Files map[string]string
}

// Result is the outcome of one Call.
type Result struct {
	Call       Call
	StatusCode int
	Body       []byte
	Err        error
}

// Send issues calls through the pipeline with at most concurrency in flight.
// Results keep the order of calls.
func (a *App) Send(ctx context.Context, calls []Call, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]Result, len(calls))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.send(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *App) send(ctx context.Context, call Call) Result {
	res := Result{Call: call}
	req, err := buildRequest(call)
	if err != nil {
		res.Err = err
		return res
	}

	resp, err := a.client.Do(ctx, req)
	if resp != nil {
		res.StatusCode = resp.StatusCode()
		res.Body = resp.Body()
	}
	res.Err = err
	return res
}

func buildRequest(call Call) (*httpclient.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodGet
	}
	req := httpclient.NewRequest(method, call.Path)

	if len(call.Fields) > 0 || len(call.Files) > 0 {
		form := &httpclient.MultipartForm{Fields: call.Fields}
		for field, path := range call.Files {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read form file %q: %w", path, err)
			}
			form.Files = append(form.Files, httpclient.FormFile{
				Field:   field,
				Name:    filepath.Base(path),
				Content: content,
			})
		}
		req.Form = form
		return req, nil
	}

	if call.JSON != "" {
		req.Header.Set("Content-Type", "application/json")
		req.Body = []byte(call.JSON)
	}
	return req, nil
}

// Close waits (bounded) for pending failure reports, then releases the
// reporter connections and the cookie store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), reportFlushTimeout)
	defer cancel()
	if err := a.client.Flush(ctx); err != nil {
		a.log.WarnObj("failure reports still pending at shutdown", "report_delivery", map[string]any{
			"error": err.Error(),
		})
		errs = append(errs, err)
	}
	if err := a.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reporters: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
