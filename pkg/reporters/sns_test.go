package reporters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSReporterReportSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	rep := &snsReporter{
		topicARN: "arn:aws:sns:::topic",
		client:   client,
		log:      noopLogger{},
	}

	err := rep.Report(context.Background(), Event{Kind: "unauthorized", Method: "GET", URL: "/portal/me", StatusCode: 401})
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["kind"]
	if !ok || attr.StringValue == nil || aws.ToString(attr.StringValue) != "unauthorized" {
		t.Fatalf("kind attribute missing or wrong: %#v", attr)
	}
	if client.input.Message == nil || !strings.Contains(aws.ToString(client.input.Message), `"status_code":401`) {
		t.Fatalf("Message missing status_code: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSReporterReportError(t *testing.T) {
	client := &fakeSNSClient{err: errors.New("boom")}
	rep := &snsReporter{
		topicARN: "arn:aws:sns:::topic",
		client:   client,
		log:      noopLogger{},
	}

	if err := rep.Report(context.Background(), Event{Kind: "network"}); err == nil {
		t.Fatalf("expected error from Report")
	}
}
