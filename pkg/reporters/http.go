package reporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/griha/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// httpReporter posts failure events to a webhook.
type httpReporter struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	typ     string
	log     Logger
}

func newHTTPReporter(_ context.Context, cfg ReporterConfig, log Logger) (Reporter, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("reporter %q missing http configuration", cfg.ID)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = httpDefaultTimeoutSeconds * time.Second
	}
	method := cfg.HTTP.Method
	if method == "" {
		method = httpDefaultMethod
	}

	return &httpReporter{
		id:      cfg.ID,
		typ:     TypeHTTP,
		method:  method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  httpclient.NewRestyHTTPClient(timeout),
		log:     ensureLogger(log),
	}, nil
}

func (h *httpReporter) ID() string   { return h.id }
func (h *httpReporter) Type() string { return h.typ }

// Report sends the event as a JSON body to the configured URL.
func (h *httpReporter) Report(ctx context.Context, evt Event) error {
	req := h.client.R().
		SetContext(ctx).
		SetBody(evt)

	if len(h.headers) > 0 {
		req.SetHeaders(h.headers)
	}

	req.SetHeader("Content-Type", "application/json")

	resp, err := req.Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		snippet := readBodySnippet(resp.Body())
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), snippet)
	}
	h.log.DebugObj("http reporter delivered event", "reporter_http_delivery", map[string]any{
		"reporter_id": h.id,
		"status":      resp.StatusCode(),
	})
	return nil
}

func readBodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
