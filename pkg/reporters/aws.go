package reporters

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves the SDK config for an AWS sink, preferring static
// keys when the reporter entry carries them.
func loadAWSConfig(ctx context.Context, access AWSAccess) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(access.Region)}
	if access.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access.AccessKeyID, access.SecretAccessKey, access.SessionToken),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// eventAttributes lists the message attributes every queue sink attaches.
func eventAttributes(evt Event) map[string]string {
	return map[string]string{
		"kind":   evt.Kind,
		"method": evt.Method,
	}
}
