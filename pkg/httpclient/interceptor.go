package httpclient

import "context"

// TokenOutcome says what request interception did about the CSRF token.
type TokenOutcome int

const (
	// TokenSkipped: read-only request, no token needed.
	TokenSkipped TokenOutcome = iota
	// TokenAttached: the token header is set.
	TokenAttached
	// TokenUnavailable: no token could be read; the request is sent without
	// it and the server decides.
	TokenUnavailable
	// TokenAborted: the caller's context ended while preparing; nothing is sent.
	TokenAborted
)

func (o TokenOutcome) String() string {
	switch o {
	case TokenSkipped:
		return "skipped"
	case TokenAttached:
		return "attached"
	case TokenUnavailable:
		return "unavailable"
	case TokenAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// TokenResult is the outcome of preparing one request. Err carries the
// bootstrap failure for TokenUnavailable and the context error for TokenAborted.
type TokenResult struct {
	Outcome TokenOutcome
	Err     error
}

// Proceed reports whether the request should still be dispatched.
func (r TokenResult) Proceed() bool { return r.Outcome != TokenAborted }

// prepare runs request interception: multipart Content-Type removal, then
// for mutating methods bootstrap, settle delay, token read and injection.
// Bootstrap failures never stop the request.
func (c *Client) prepare(ctx context.Context, req *Request) TokenResult {
	req.ensureHeader()
	if req.Multipart() {
		// The transport writes the boundary parameter itself.
		req.Header.Del("Content-Type")
	}
	if !req.Mutating() {
		return TokenResult{Outcome: TokenSkipped}
	}

	ensureErr := c.tokens.Ensure(ctx, false)
	if ctx.Err() != nil {
		return TokenResult{Outcome: TokenAborted, Err: ctx.Err()}
	}
	if ensureErr != nil {
		c.log.WarnObj("csrf bootstrap unavailable; sending request anyway", "csrf_prepare", map[string]any{
			"method": req.Method,
			"url":    req.URL,
			"error":  ensureErr.Error(),
		})
	}

	if err := sleepCtx(ctx, c.opts.TokenSettleDelay); err != nil {
		return TokenResult{Outcome: TokenAborted, Err: err}
	}

	token := c.tokens.Token()
	if token == "" {
		c.log.WarnObj("csrf token cookie missing; sending request without token", "csrf_prepare", map[string]any{
			"method": req.Method,
			"url":    req.URL,
		})
		if ensureErr == nil {
			ensureErr = ErrTokenNotIssued
		}
		return TokenResult{Outcome: TokenUnavailable, Err: ensureErr}
	}

	req.Header.Set(c.opts.HeaderName, token)
	return TokenResult{Outcome: TokenAttached}
}
