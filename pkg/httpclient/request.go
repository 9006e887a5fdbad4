package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one outbound call. The pipeline mutates Header before
// dispatch (token injection, multipart Content-Type removal), so a Request
// must not be shared between concurrent Do calls.
type Request struct {
	Method string
	// URL is absolute or relative to Options.BaseURL.
	URL    string
	Header http.Header
	Query  url.Values
	// Body is JSON-encoded unless it is a []byte or string.
	Body any
	// Form switches the request to multipart/form-data; Body is ignored.
	Form *MultipartForm
	// Timeout overrides Options.RequestTimeout for this request.
	Timeout time.Duration
}

// MultipartForm is a replayable multipart payload.
type MultipartForm struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is a single file part. Content is held in memory so the request can be resent.
type FormFile struct {
	Field   string
	Name    string
	Content []byte
}

// NewRequest builds a request with an initialized header.
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		URL:    rawURL,
		Header: make(http.Header),
	}
}

// Mutating reports whether the method changes server-side state.
func (r *Request) Mutating() bool {
	switch strings.ToUpper(r.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Idempotent reports whether the request may be resent after a timeout.
func (r *Request) Idempotent() bool {
	switch strings.ToUpper(r.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "":
		return true
	default:
		return false
	}
}

// Multipart reports whether the body is a multipart form payload.
func (r *Request) Multipart() bool {
	if r.Form != nil {
		return true
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "multipart/form-data")
}

func (r *Request) ensureHeader() {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
}
