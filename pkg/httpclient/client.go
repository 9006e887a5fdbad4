package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/Adda-Baaj/griha/pkg/routes"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// Deps are the collaborators of a Client. Every field is optional.
type Deps struct {
	// Jar defaults to an in-memory cookie jar using the public suffix list.
	Jar CookieStore
	// Transport defaults to a RestyTransport bound to Options.BaseURL and Jar.
	Transport Transport
	Navigator Navigator
	// Routes defaults to routes.DefaultPolicy().
	Routes   *routes.Policy
	Reporter FailureReporter
	Logger   Logger
	// RestyLogger is handed to the default transport.
	RestyLogger resty.Logger
	// Now defaults to time.Now; used for network-log suppression.
	Now func() time.Time
}

// Client sends requests to the backend through the CSRF pipeline.
// A Client is safe for concurrent use.
type Client struct {
	opts      Options
	transport Transport
	tokens    *TokenBootstrapper
	nav       Navigator
	routes    routes.Policy
	reporter  FailureReporter
	log       Logger
	netLog    *logThrottle

	// reports tracks failure reports still being delivered.
	reports sync.WaitGroup
}

// NewClient wires a pipeline client.
func NewClient(opts Options, deps Deps) (*Client, error) {
	opts = opts.withDefaults()

	jar := deps.Jar
	if jar == nil {
		j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		jar = j
	}

	transport := deps.Transport
	if transport == nil {
		transport = NewRestyTransport(opts.BaseURL, 0, jar, deps.RestyLogger)
	}

	log := ensureLogger(deps.Logger)
	tokens, err := newTokenBootstrapper(transport, jar, opts, log)
	if err != nil {
		return nil, err
	}

	nav := deps.Navigator
	if nav == nil {
		nav = nopNavigator{}
	}
	policy := routes.DefaultPolicy()
	if deps.Routes != nil {
		policy = *deps.Routes
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		opts:      opts,
		transport: transport,
		tokens:    tokens,
		nav:       nav,
		routes:    policy,
		reporter:  deps.Reporter,
		log:       log,
		netLog:    &logThrottle{window: opts.NetworkLogWindow, now: now},
	}, nil
}

// Tokens exposes the bootstrapper shared by every request of this client.
func (c *Client) Tokens() *TokenBootstrapper { return c.tokens }

// EnsureToken runs the CSRF bootstrap outside of a request.
func (c *Client) EnsureToken(ctx context.Context, forceRefresh bool) error {
	return c.tokens.Ensure(ctx, forceRefresh)
}

// BaseURL returns the API base requests are resolved against.
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// requestState tracks recoveries already spent on one request.
type requestState struct {
	id             string
	timeoutRetries int
	csrfRetried    bool
}

func (s *requestState) retries() int {
	n := s.timeoutRetries
	if s.csrfRetried {
		n++
	}
	return n
}

// Do prepares, sends and, on failure, classifies req. Recoverable failures
// are retried within fixed bounds: read-only requests up to TimeoutRetries
// times after a timeout, and any request once after a 419 with a refreshed
// token. Other failures come back as *Error; non-2xx responses are returned
// alongside the error.
func (c *Client) Do(ctx context.Context, req *Request) (Response, error) {
	if req == nil {
		return nil, errors.New("request must not be nil")
	}
	st := &requestState{id: uuid.NewString()}

	prep := c.prepare(ctx, req)
	if !prep.Proceed() {
		return nil, fmt.Errorf("prepare %s %s: %w", req.Method, req.URL, prep.Err)
	}
	c.log.DebugObj("request prepared", "request_meta", map[string]any{
		"request_id": st.id,
		"method":     req.Method,
		"url":        req.URL,
		"csrf_token": prep.Outcome.String(),
	})

	for {
		resp, err := c.send(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, ctx.Err())
			}
			kind := classifyTransportError(err)
			if kind == KindTimeout && req.Idempotent() && st.timeoutRetries < c.opts.TimeoutRetries {
				st.timeoutRetries++
				delay := c.opts.TimeoutRetryStep * time.Duration(st.timeoutRetries)
				c.log.WarnObj("request timed out; retrying", "request_retry", map[string]any{
					"request_id": st.id,
					"method":     req.Method,
					"url":        req.URL,
					"retry":      st.timeoutRetries,
					"delay":      delay.String(),
				})
				if err := sleepCtx(ctx, delay); err != nil {
					return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
				}
				continue
			}
			return nil, c.fail(ctx, req, st, kind, nil, err)
		}

		kind, failed := classifyStatus(resp.StatusCode())
		if !failed {
			return resp, nil
		}

		switch kind {
		case KindCSRF:
			if !st.csrfRetried {
				st.csrfRetried = true
				if c.refreshToken(ctx, req, st) {
					continue
				}
				if ctx.Err() != nil {
					return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, ctx.Err())
				}
			}
		case KindUnauthorized:
			c.redirectToLogin(st)
		}
		return resp, c.fail(ctx, req, st, kind, resp, nil)
	}
}

func (c *Client) send(ctx context.Context, req *Request) (Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.transport.Send(attemptCtx, req)
}

// refreshToken forces a new bootstrap after a 419 and re-attaches the token.
// It reports false when no token could be obtained.
func (c *Client) refreshToken(ctx context.Context, req *Request, st *requestState) bool {
	if err := c.tokens.Ensure(ctx, true); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.log.WarnObj("csrf refresh failed", "csrf_refresh", map[string]any{
			"request_id": st.id,
			"error":      err.Error(),
		})
	}
	if err := sleepCtx(ctx, c.opts.RefreshSettleDelay); err != nil {
		return false
	}

	token := c.tokens.Token()
	if token == "" {
		c.log.WarnObj("csrf token still missing after refresh", "csrf_refresh", map[string]any{
			"request_id": st.id,
		})
		return false
	}
	req.ensureHeader()
	req.Header.Set(c.opts.HeaderName, token)
	c.log.InfoObj("csrf token refreshed; resending request", "csrf_refresh", map[string]any{
		"request_id": st.id,
		"method":     req.Method,
		"url":        req.URL,
	})
	return true
}

// redirectToLogin sends the browser to the login page when the current page is protected.
func (c *Client) redirectToLogin(st *requestState) {
	current := c.nav.CurrentPath()
	if !c.routes.Protected(current) {
		return
	}
	target := c.routes.LoginURL(current)
	c.log.InfoObj("unauthorized on protected page; redirecting to login", "auth_redirect", map[string]any{
		"request_id": st.id,
		"from":       current,
		"to":         target,
	})
	c.nav.Navigate(target)
}

// fail builds the classified error, logs it and hands it to the reporter.
func (c *Client) fail(ctx context.Context, req *Request, st *requestState, kind Kind, resp Response, cause error) *Error {
	e := &Error{
		Kind:     kind,
		Method:   req.Method,
		URL:      req.URL,
		Retries:  st.retries(),
		BaseURL:  c.opts.BaseURL,
		Response: resp,
		Err:      cause,
	}
	if resp != nil {
		e.StatusCode = resp.StatusCode()
	}

	switch kind {
	case KindNetwork:
		e.Hint = fmt.Sprintf("cannot reach the server at %s; make sure the backend is running", c.opts.BaseURL)
		if c.netLog.allow() {
			c.log.ErrorObj("backend unreachable", "request_error", c.errorFields(st, e))
		}
	case KindTimeout:
		e.Hint = "request timed out; the server is likely slow or unreachable"
		c.log.WarnObj("request timed out", "request_error", c.errorFields(st, e))
	case KindCSRF:
		e.Hint = "security token expired; please refresh the page and try again"
		c.log.WarnObj("csrf token rejected", "request_error", c.errorFields(st, e))
	case KindUnauthorized:
		e.Hint = "authentication required"
		c.log.DebugObj("request unauthorized", "request_error", c.errorFields(st, e))
	default:
		e.Hint = "unexpected response status"
		if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusUnprocessableEntity {
			c.log.DebugObj("request rejected", "request_error", c.errorFields(st, e))
		} else {
			c.log.WarnObj("request rejected", "request_error", c.errorFields(st, e))
		}
	}

	if c.reporter != nil && kind != KindOther {
		c.reports.Add(1)
		go func() {
			defer c.reports.Done()
			c.reporter.ReportFailure(context.WithoutCancel(ctx), e)
		}()
	}
	return e
}

// Flush blocks until every failure report handed to the reporter so far has
// been delivered, or until ctx ends.
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.reports.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush failure reports: %w", ctx.Err())
	}
}

func (c *Client) errorFields(st *requestState, e *Error) map[string]any {
	fields := map[string]any{
		"request_id": st.id,
		"kind":       e.Kind.String(),
		"method":     e.Method,
		"url":        e.URL,
		"retries":    e.Retries,
		"base_url":   e.BaseURL,
	}
	if e.StatusCode != 0 {
		fields["status"] = e.StatusCode
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}
	return fields
}

// logThrottle lets one log line through per window.
type logThrottle struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   time.Time
}

func (t *logThrottle) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		return false
	}
	t.last = now
	return true
}

// Get sends a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, url string, query map[string][]string) (Response, error) {
	req := NewRequest(http.MethodGet, url)
	req.Query = query
	return c.Do(ctx, req)
}

// Post sends body as JSON (or raw for []byte/string).
func (c *Client) Post(ctx context.Context, url string, body any) (Response, error) {
	return c.withBody(ctx, http.MethodPost, url, body)
}

// Put replaces the resource at url.
func (c *Client) Put(ctx context.Context, url string, body any) (Response, error) {
	return c.withBody(ctx, http.MethodPut, url, body)
}

// Patch partially updates the resource at url.
func (c *Client) Patch(ctx context.Context, url string, body any) (Response, error) {
	return c.withBody(ctx, http.MethodPatch, url, body)
}

// Delete removes the resource at url.
func (c *Client) Delete(ctx context.Context, url string) (Response, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, url))
}

// PostForm sends a multipart form.
func (c *Client) PostForm(ctx context.Context, url string, form *MultipartForm) (Response, error) {
	req := NewRequest(http.MethodPost, url)
	req.Form = form
	return c.Do(ctx, req)
}

func (c *Client) withBody(ctx context.Context, method, url string, body any) (Response, error) {
	req := NewRequest(method, url)
	req.Body = body
	return c.Do(ctx, req)
}
