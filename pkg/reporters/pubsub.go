package reporters

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// pubsubReporter publishes failure events to a Google Cloud Pub/Sub topic.
// The client honours PUBSUB_EMULATOR_HOST.
type pubsubReporter struct {
	id     string
	typ    string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

func newPubSubReporter(ctx context.Context, cfg ReporterConfig, log Logger) (Reporter, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("reporter %q missing pubsub configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubReporter{
		id:     cfg.ID,
		typ:    TypePubSub,
		client: client,
		topic:  client.Topic(cfg.PubSub.Topic),
		log:    ensureLogger(log),
	}, nil
}

func (p *pubsubReporter) ID() string   { return p.id }
func (p *pubsubReporter) Type() string { return p.typ }

func (p *pubsubReporter) Report(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := make(map[string]string)
	for k, v := range eventAttributes(evt) {
		if v != "" {
			attrs[k] = v
		}
	}

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs}).Get(ctx)
	if err != nil {
		p.log.ErrorObj("pubsub reporter publish failed", "reporter_pubsub_error", map[string]any{
			"reporter_id": p.id,
			"error":       err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub reporter delivered event", "reporter_pubsub_delivery", map[string]any{
		"reporter_id": p.id,
		"message_id":  id,
	})
	return nil
}

// Close flushes pending messages and releases the client.
func (p *pubsubReporter) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
