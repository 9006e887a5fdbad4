package reporters

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

func TestPubSubReporterPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()
	if _, err := client.CreateTopic(ctx, "failures"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	rep, err := newPubSubReporter(ctx, ReporterConfig{
		ID:     "gcp",
		Type:   TypePubSub,
		PubSub: &PubSubConfig{ProjectID: "test-project", Topic: "failures"},
	}, nil)
	if err != nil {
		t.Fatalf("newPubSubReporter: %v", err)
	}
	defer rep.(*pubsubReporter).Close()

	evt := Event{Kind: "timeout", Method: "GET", URL: "/properties", OccurredAt: time.Now().UTC()}
	if err := rep.Report(ctx, evt); err != nil {
		t.Fatalf("Report: %v", err)
	}

	msgs := server.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}
	var got Event
	if err := json.Unmarshal(msgs[0].Data, &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.Kind != "timeout" || got.URL != "/properties" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if msgs[0].Attributes["kind"] != "timeout" {
		t.Fatalf("missing kind attribute: %v", msgs[0].Attributes)
	}
}
