package reporters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported reporter types.
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
	TypeHTTP   = "http"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// configFile represents the structure of the reporters configuration file.
type configFile struct {
	Reporters []ReporterConfig `json:"reporters" yaml:"reporters"`
}

// ReporterConfig represents a single reporter entry declared in config files.
type ReporterConfig struct {
	ID      string        `json:"id" yaml:"id"`
	Type    string        `json:"type" yaml:"type"`
	Enabled *bool         `json:"enabled" yaml:"enabled"`
	SQS     *SQSConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubConfig `json:"pubsub" yaml:"pubsub"`
	HTTP    *HTTPConfig   `json:"http" yaml:"http"`
}

// AWSAccess holds the connection settings shared by the AWS sinks. Static
// keys are optional; without them the default credential chain applies.
type AWSAccess struct {
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

func (a AWSAccess) sanitized() AWSAccess {
	a.Region = strings.TrimSpace(a.Region)
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
	a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
	a.SessionToken = strings.TrimSpace(a.SessionToken)
	return a
}

func (a AWSAccess) validate(kind, id string) error {
	if a.Region == "" {
		return fmt.Errorf("%s.region is required for reporter %q", kind, id)
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return fmt.Errorf("%s.access_key_id and %s.secret_access_key must be set together for reporter %q", kind, kind, id)
	}
	return nil
}

// SQSConfig holds AWS SQS specific settings.
type SQSConfig struct {
	QueueURL  string `json:"uri" yaml:"uri"`
	AWSAccess `yaml:",inline"`
}

// SNSConfig holds AWS SNS specific settings.
type SNSConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
	AWSAccess `yaml:",inline"`
}

// PubSubConfig holds Google Cloud Pub/Sub settings.
type PubSubConfig struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Topic     string `json:"topic" yaml:"topic"`
}

// HTTPConfig holds generic webhook sink settings.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry materializes reporter definitions loaded from config files.
type ConfigRegistry struct {
	mu        sync.RWMutex
	reporters []ReporterConfig
	idx       map[string]ReporterConfig
}

// LoadRegistry loads the reporter registry from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("reporters file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reporters file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read reporters file: %w", err)
	}

	fileReg, err := parseReporterRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Reporters) == 0 {
		return nil, errors.New("reporters file contains no reporters entries")
	}

	reg := &ConfigRegistry{
		reporters: make([]ReporterConfig, len(fileReg.Reporters)),
		idx:       make(map[string]ReporterConfig, len(fileReg.Reporters)),
	}

	for i := range fileReg.Reporters {
		cfg := sanitizeReporterConfig(fileReg.Reporters[i])
		if err := validateReporterConfig(cfg); err != nil {
			return nil, fmt.Errorf("reporters[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate reporter id %q", cfg.ID)
		}
		reg.reporters[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseReporterRegistry attempts to decode the reporters file content.
func parseReporterRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalReporterRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("reporters file format not recognized (expected YAML or JSON)")
}

func unmarshalReporterRegistry(name string, data []byte, fn func([]byte, any) error) (configFile, error) {
	var reg configFile
	if err := fn(data, &reg); err != nil {
		return configFile{}, fmt.Errorf("decode %s reporters: %w", name, err)
	}
	return reg, nil
}

// sanitizeReporterConfig trims and normalizes the reporter config fields.
func sanitizeReporterConfig(cfg ReporterConfig) ReporterConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.AWSAccess = c.AWSAccess.sanitized()
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		c.TopicARN = strings.TrimSpace(c.TopicARN)
		c.AWSAccess = c.AWSAccess.sanitized()
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.Topic = strings.TrimSpace(c.Topic)
		cfg.PubSub = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}

	return cfg
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateReporterConfig checks that required fields are present.
func validateReporterConfig(cfg ReporterConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for reporter %q", cfg.ID)
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for reporter %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for reporter %q", cfg.ID)
		}
		return cfg.SQS.AWSAccess.validate(TypeSQS, cfg.ID)
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("sns config required for reporter %q", cfg.ID)
		}
		if cfg.SNS.TopicARN == "" {
			return fmt.Errorf("sns.topic_arn is required for reporter %q", cfg.ID)
		}
		return cfg.SNS.AWSAccess.validate(TypeSNS, cfg.ID)
	case TypePubSub:
		if cfg.PubSub == nil {
			return fmt.Errorf("pubsub config required for reporter %q", cfg.ID)
		}
		if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for reporter %q", cfg.ID)
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for reporter %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for reporter %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the reporter config by id.
func (r *ConfigRegistry) ByID(id string) (ReporterConfig, bool) {
	if r == nil {
		return ReporterConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return ReporterConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured reporters.
func (r *ConfigRegistry) All() []ReporterConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ReporterConfig, len(r.reporters))
	copy(out, r.reporters)
	return out
}

// Enabled returns reporters that are enabled.
func (r *ConfigRegistry) Enabled() []ReporterConfig {
	if r == nil {
		return nil
	}

	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]ReporterConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg ReporterConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
