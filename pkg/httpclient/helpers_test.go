package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// backendConfig shapes the fake backend's cookie endpoint.
type backendConfig struct {
	cookieDelay  time.Duration
	cookieStatus int
	// noCookie answers the cookie endpoint without setting a cookie.
	noCookie bool
}

// backend is an httptest server standing in for the API. Each cookie-endpoint
// call issues a new token: token-1, token-2, ...
type backend struct {
	srv         *httptest.Server
	mux         *http.ServeMux
	cookieCalls atomic.Int32
}

func newBackend(t *testing.T, cfg backendConfig) *backend {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	b.mux.HandleFunc("/sanctum/csrf-cookie", func(w http.ResponseWriter, r *http.Request) {
		n := b.cookieCalls.Add(1)
		if cfg.cookieDelay > 0 {
			time.Sleep(cfg.cookieDelay)
		}
		if cfg.cookieStatus != 0 {
			w.WriteHeader(cfg.cookieStatus)
			return
		}
		if !cfg.noCookie {
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: fmt.Sprintf("token-%d", n), Path: "/"})
		}
		w.WriteHeader(http.StatusNoContent)
	})
	b.srv = httptest.NewServer(b.mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) baseURL() string { return b.srv.URL + "/api" }

func (b *backend) handle(pattern string, h http.HandlerFunc) { b.mux.HandleFunc(pattern, h) }

// fastOptions shrinks every delay so tests run in milliseconds.
func fastOptions(baseURL string) Options {
	return Options{
		BaseURL:              baseURL,
		RequestTimeout:       2 * time.Second,
		BootstrapTimeout:     time.Second,
		BootstrapBackoffStep: time.Millisecond,
		CookiePollInterval:   time.Millisecond,
		CookiePollAttempts:   3,
		TokenSettleDelay:     -1,
		RefreshSettleDelay:   -1,
		TimeoutRetryStep:     time.Millisecond,
	}
}

func newTestClient(t *testing.T, opts Options, deps Deps) *Client {
	t.Helper()
	c, err := NewClient(opts, deps)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

type logEntry struct {
	level string
	msg   string
	obj   interface{}
}

// recordingLogger keeps every log line for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string, obj interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, obj: obj})
}

func (r *recordingLogger) InfoObj(msg, _ string, obj interface{})  { r.add("info", msg, obj) }
func (r *recordingLogger) DebugObj(msg, _ string, obj interface{}) { r.add("debug", msg, obj) }
func (r *recordingLogger) WarnObj(msg, _ string, obj interface{})  { r.add("warn", msg, obj) }
func (r *recordingLogger) ErrorObj(msg, _ string, obj interface{}) { r.add("error", msg, obj) }

func (r *recordingLogger) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.msg == msg {
			n++
		}
	}
	return n
}

// fakeNavigator records navigation targets.
type fakeNavigator struct {
	mu      sync.Mutex
	current string
	targets []string
}

func (f *fakeNavigator) CurrentPath() string { return f.current }

func (f *fakeNavigator) Navigate(target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
}

func (f *fakeNavigator) navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

// stubResponse implements Response.
type stubResponse struct {
	status int
	body   []byte
}

func (s stubResponse) Body() []byte        { return s.body }
func (s stubResponse) StatusCode() int     { return s.status }
func (s stubResponse) Header() http.Header { return http.Header{} }

// fakeTransport answers through fn and counts calls.
type fakeTransport struct {
	calls atomic.Int32
	fn    func(req *Request) (Response, error)
}

func (f *fakeTransport) Send(_ context.Context, req *Request) (Response, error) {
	f.calls.Add(1)
	return f.fn(req)
}

// fakeReporter forwards reported errors to a channel.
type fakeReporter struct {
	got chan *Error
}

func (f *fakeReporter) ReportFailure(_ context.Context, err *Error) { f.got <- err }
