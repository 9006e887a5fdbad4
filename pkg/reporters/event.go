package reporters

import (
	"time"

	"github.com/Adda-Baaj/griha/pkg/httpclient"
)

// Event is the failure payload delivered to every sink.
type Event struct {
	Kind       string    `json:"kind"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Retries    int       `json:"retries"`
	BaseURL    string    `json:"base_url"`
	Hint       string    `json:"hint"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent flattens a classified client error into an Event.
func NewEvent(err *httpclient.Error) Event {
	evt := Event{OccurredAt: time.Now().UTC()}
	if err == nil {
		return evt
	}
	evt.Kind = err.Kind.String()
	evt.Method = err.Method
	evt.URL = err.URL
	evt.StatusCode = err.StatusCode
	evt.Retries = err.Retries
	evt.BaseURL = err.BaseURL
	evt.Hint = err.Hint
	if err.Err != nil {
		evt.Error = err.Err.Error()
	}
	return evt
}
