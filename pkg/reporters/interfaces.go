package reporters

import "context"

// Reporter delivers failure events to a downstream sink (SQS, SNS, HTTP, etc).
type Reporter interface {
	ID() string
	Type() string
	Report(ctx context.Context, evt Event) error
}
