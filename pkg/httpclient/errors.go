package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed request.
type Kind int

const (
	KindOther Kind = iota
	KindNetwork
	KindTimeout
	KindCSRF
	KindUnauthorized
)

// StatusCSRFMismatch is the status the backend answers with when the CSRF token is missing or stale.
const StatusCSRFMismatch = 419

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCSRF:
		return "csrf"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrNetwork          = errors.New("server unreachable")
	ErrTimeout          = errors.New("request timed out")
	ErrCSRFMismatch     = errors.New("csrf token mismatch")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Error is the classified failure returned by Client.Do.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	// Retries is the number of automatic resends made before giving up.
	Retries int
	BaseURL string
	// Hint is a human-readable explanation callers can show as-is.
	Hint string
	// Response is the last response received, nil for transport failures.
	Response Response
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Hint)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindCSRF:
		return ErrCSRFMismatch
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrUnexpectedStatus
	}
}

func (e *Error) IsNetworkError() bool { return e.Kind == KindNetwork }
func (e *Error) IsTimeoutError() bool { return e.Kind == KindTimeout }
func (e *Error) IsCSRFError() bool    { return e.Kind == KindCSRF }
func (e *Error) IsUnauthorized() bool { return e.Kind == KindUnauthorized }

// AsError extracts the classified error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// classifyTransportError maps a transport failure to network or timeout.
func classifyTransportError(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// classifyStatus maps a completed response to a kind; ok is false for 2xx/3xx.
func classifyStatus(status int) (Kind, bool) {
	switch {
	case status == StatusCSRFMismatch:
		return KindCSRF, true
	case status == http.StatusUnauthorized:
		return KindUnauthorized, true
	case status >= 400:
		return KindOther, true
	default:
		return KindOther, false
	}
}
