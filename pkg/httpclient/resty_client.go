package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyTransport adapts resty.Client to the Transport interface.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport creates a transport bound to baseURL that stores cookies in jar.
// log may be nil; zap's SugaredLogger satisfies resty.Logger.
func NewRestyTransport(baseURL string, timeout time.Duration, jar CookieStore, log resty.Logger) *RestyTransport {
	c := newRestyBaseClient(timeout)
	if baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	if jar != nil {
		c.SetCookieJar(jar)
	}
	if log != nil {
		c.SetLogger(log)
	}
	return &RestyTransport{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetRetryCount(0)
	return c
}

// Send performs a single attempt of req.
func (r *RestyTransport) Send(ctx context.Context, req *Request) (Response, error) {
	rr := r.client.R().SetContext(ctx)
	if len(req.Header) > 0 {
		rr.SetHeaderMultiValues(req.Header)
	}
	if len(req.Query) > 0 {
		rr.SetQueryParamsFromValues(req.Query)
	}

	switch {
	case req.Form != nil:
		if len(req.Form.Fields) > 0 {
			rr.SetMultipartFormData(req.Form.Fields)
		}
		for _, f := range req.Form.Files {
			rr.SetFileReader(f.Field, f.Name, bytes.NewReader(f.Content))
		}
	case req.Body != nil:
		rr.SetBody(req.Body)
		if req.Header.Get("Content-Type") == "" {
			switch req.Body.(type) {
			case []byte, string:
			default:
				rr.SetHeader("Content-Type", "application/json")
			}
		}
	}
	if req.Header.Get("Accept") == "" {
		rr.SetHeader("Accept", "application/json")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := rr.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
