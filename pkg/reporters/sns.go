package reporters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsReporter publishes failure events to an SNS topic.
type snsReporter struct {
	id       string
	topicARN string
	typ      string
	client   snsClient
	log      Logger
}

func newSNSReporter(ctx context.Context, cfg ReporterConfig, log Logger) (Reporter, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("reporter %q missing sns configuration", cfg.ID)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.AWSAccess)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.SNS.Endpoint
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &snsReporter{
		id:       cfg.ID,
		typ:      TypeSNS,
		topicARN: cfg.SNS.TopicARN,
		client:   client,
		log:      ensureLogger(log),
	}, nil
}

func (s *snsReporter) ID() string   { return s.id }
func (s *snsReporter) Type() string { return s.typ }

func (s *snsReporter) Report(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range eventAttributes(evt) {
		if v == "" {
			continue
		}
		attrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		s.log.ErrorObj("sns reporter publish failed", "reporter_sns_error", map[string]any{
			"reporter_id": s.id,
			"error":       err.Error(),
		})
		return fmt.Errorf("publish to sns: %w", err)
	}
	s.log.DebugObj("sns reporter delivered event", "reporter_sns_delivery", map[string]any{
		"reporter_id": s.id,
		"message_id":  aws.ToString(out.MessageId),
	})
	return nil
}
