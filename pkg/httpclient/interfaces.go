package httpclient

import (
	"context"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Transport sends a single attempt of a request. It performs no retries and
// no classification; non-2xx statuses are returned as responses, not errors.
type Transport interface {
	Send(ctx context.Context, req *Request) (Response, error)
}

// CookieStore is the cookie jar shared by the bootstrapper and the transport.
// The CSRF token is always read back from it at the moment of use.
type CookieStore = http.CookieJar

// Navigator is the page-navigation collaborator used for 401 redirects.
type Navigator interface {
	// CurrentPath returns the path and query of the page issuing requests.
	CurrentPath() string
	Navigate(target string)
}

// FailureReporter receives the final classified error of a request.
type FailureReporter interface {
	ReportFailure(ctx context.Context, err *Error)
}

// Logger defines the logging surface the pipeline relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

type nopNavigator struct{}

func (nopNavigator) CurrentPath() string { return "" }
func (nopNavigator) Navigate(string)     {}
