package reporters

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reporters.yaml")
	raw := `
reporters:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "http2" {
		t.Fatalf("expected only http2 enabled, got %#v", enabled)
	}
	cfg, ok := reg.ByID("http2")
	if !ok || cfg.HTTP.Method != "POST" || cfg.HTTP.TimeoutSeconds != 5 {
		t.Fatalf("expected http defaults applied, got %#v", cfg.HTTP)
	}
}

func TestLoadRegistryAWSInlineAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reporters.yml")
	raw := `
reporters:
  - id: topic
    type: SNS
    sns:
      topic_arn: " arn:aws:sns:us-east-1:000000000000:failures "
      region: us-east-1
      endpoint: http://localhost:4566
      access_key_id: test
      secret_access_key: test
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg, ok := reg.ByID("topic")
	if !ok || cfg.Type != TypeSNS {
		t.Fatalf("expected sns reporter, got %#v", cfg)
	}
	if cfg.SNS.TopicARN != "arn:aws:sns:us-east-1:000000000000:failures" || cfg.SNS.Region != "us-east-1" || cfg.SNS.Endpoint != "http://localhost:4566" {
		t.Fatalf("unexpected sns config %#v", cfg.SNS)
	}
}

func TestLoadRegistryDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reporters.json")
	raw := `{"reporters": [
		{"id": "a", "type": "pubsub", "pubsub": {"project_id": "p", "topic": "t"}},
		{"id": "a", "type": "pubsub", "pubsub": {"project_id": "p", "topic": "t"}}
	]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateReporterConfig(t *testing.T) {
	cases := map[string]ReporterConfig{
		"missing http block": {ID: "h1", Type: TypeHTTP},
		"missing sqs region": {ID: "q1", Type: TypeSQS, SQS: &SQSConfig{QueueURL: "https://q"}},
		"half static keys": {ID: "q2", Type: TypeSQS, SQS: &SQSConfig{
			QueueURL:  "https://q",
			AWSAccess: AWSAccess{Region: "us-east-1", AccessKeyID: "only-id"},
		}},
		"missing sns topic":    {ID: "s1", Type: TypeSNS, SNS: &SNSConfig{AWSAccess: AWSAccess{Region: "us-east-1"}}},
		"missing pubsub topic": {ID: "p1", Type: TypePubSub, PubSub: &PubSubConfig{ProjectID: "p"}},
	}
	for name, cfg := range cases {
		if err := validateReporterConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
