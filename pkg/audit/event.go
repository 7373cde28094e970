package audit

import (
	"fmt"
	"time"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is one entry of the security audit trail.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Result    Result         `json:"result"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption adjusts an event before it is written.
type EventOption func(*Event)

// WithUserID overrides the user taken from the context.
func WithUserID(id string) EventOption {
	return func(e *Event) {
		e.UserID = id
	}
}

// WithMetadata adds one metadata entry.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult sets the result.
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}
