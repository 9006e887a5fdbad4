package reporters

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Adda-Baaj/griha/pkg/httpclient"
)

// Fanout dispatches failure events to all configured reporters.
type Fanout struct {
	reporters []Reporter
	log       Logger
}

var _ httpclient.FailureReporter = (*Fanout)(nil)

// NewFanout builds a dispatcher that fans out events across reporters.
func NewFanout(reps []Reporter, log Logger) *Fanout {
	cp := make([]Reporter, 0, len(reps))
	for _, r := range reps {
		if r == nil {
			continue
		}
		cp = append(cp, r)
	}
	return &Fanout{reporters: cp, log: ensureLogger(log)}
}

// Report forwards the event to every registered reporter.
// It returns the number of reporters that successfully handled the event.
func (f *Fanout) Report(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.reporters) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, r := range f.reporters {
		if err := r.Report(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s reporter[%s]: %w", r.Type(), r.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// ReportFailure implements httpclient.FailureReporter. Delivery errors are
// logged, never returned to the request path.
func (f *Fanout) ReportFailure(ctx context.Context, failure *httpclient.Error) {
	if f == nil || len(f.reporters) == 0 || failure == nil {
		return
	}
	evt := NewEvent(failure)
	delivered, err := f.Report(ctx, evt)
	if err != nil {
		f.log.WarnObj("failure report not fully delivered", "report_delivery", map[string]any{
			"kind":      evt.Kind,
			"url":       evt.URL,
			"delivered": delivered,
			"total":     len(f.reporters),
			"error":     err.Error(),
		})
		return
	}
	f.log.DebugObj("failure reported", "report_delivery", map[string]any{
		"kind":      evt.Kind,
		"url":       evt.URL,
		"delivered": delivered,
	})
}

// Size returns the number of active reporters.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.reporters)
}

// Close releases reporters that hold connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, r := range f.reporters {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s reporter[%s]: %w", r.Type(), r.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
