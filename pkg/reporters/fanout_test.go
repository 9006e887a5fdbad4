package reporters

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Adda-Baaj/griha/pkg/httpclient"
)

type stubReporter struct {
	mu     sync.Mutex
	id     string
	typ    string
	err    error
	events []Event
	closed bool
}

func (s *stubReporter) ID() string   { return s.id }
func (s *stubReporter) Type() string { return s.typ }
func (s *stubReporter) Report(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *stubReporter) Close() error {
	s.closed = true
	return nil
}

func TestFanoutReportAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Reporter{
		&stubReporter{id: "ok", typ: "http"},
		&stubReporter{id: "bad", typ: "http", err: errors.New("failed")},
		nil,
	}, nil)

	if fanout.Size() != 2 {
		t.Fatalf("nil reporters must be dropped, size %d", fanout.Size())
	}
	count, err := fanout.Report(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestFanoutReportFailureFlattensClientError(t *testing.T) {
	stub := &stubReporter{id: "s", typ: "sqs"}
	fanout := NewFanout([]Reporter{stub}, nil)

	fanout.ReportFailure(context.Background(), &httpclient.Error{
		Kind:       httpclient.KindCSRF,
		Method:     "POST",
		URL:        "/bookings",
		StatusCode: 419,
		Retries:    1,
		BaseURL:    "http://localhost:8000/api",
		Hint:       "security token expired",
		Err:        errors.New("csrf token mismatch"),
	})

	if len(stub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(stub.events))
	}
	evt := stub.events[0]
	if evt.Kind != "csrf" || evt.StatusCode != 419 || evt.Retries != 1 || evt.URL != "/bookings" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Error != "csrf token mismatch" || evt.OccurredAt.IsZero() {
		t.Fatalf("event missing error or timestamp: %+v", evt)
	}
}

func TestFanoutCloseClosesReporters(t *testing.T) {
	stub := &stubReporter{id: "s", typ: "pubsub"}
	if err := NewFanout([]Reporter{stub}, nil).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stub.closed {
		t.Fatalf("reporter was not closed")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	reps, err := BuildAll(context.Background(), reg, []ReporterConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(reps) != 1 || reps[0].Type() != TypeHTTP {
		t.Fatalf("expected 1 http reporter, got %v", reps)
	}

	if _, err := BuildAll(context.Background(), reg, []ReporterConfig{{ID: "x", Type: "kafka"}}, nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestBuildAllRejectsDuplicateIDs(t *testing.T) {
	var built []*stubReporter
	reg := NewRegistry(map[string]Builder{
		"stub": func(_ context.Context, cfg ReporterConfig, _ Logger) (Reporter, error) {
			rep := &stubReporter{id: cfg.ID, typ: "stub"}
			built = append(built, rep)
			return rep, nil
		},
	})

	_, err := BuildAll(context.Background(), reg, []ReporterConfig{
		{ID: "ops", Type: "stub"},
		{ID: "audit", Type: "stub"},
		{ID: " OPS ", Type: "stub"},
	}, nil)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if len(built) != 2 {
		t.Fatalf("expected build to stop at the duplicate, built %d", len(built))
	}
	for _, rep := range built {
		if !rep.closed {
			t.Fatalf("reporter %s was not closed after the failed build", rep.id)
		}
	}
}
