package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Writer persists audit events.
type Writer interface {
	Store(ctx context.Context, event Event) error
}

// BatchWriter persists several events at once.
type BatchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// ContextExtractor reads one event field from a request context.
type ContextExtractor func(context.Context) (string, bool)

// Recorder builds events from the request context and hands them to a Writer.
type Recorder struct {
	writer             Writer
	now                func() time.Time
	userIDExtractor    ContextExtractor
	requestIDExtractor ContextExtractor
	ipExtractor        ContextExtractor
	userAgentExtractor ContextExtractor
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithUserIDExtractor(fn ContextExtractor) Option {
	return func(r *Recorder) {
		r.userIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn ContextExtractor) Option {
	return func(r *Recorder) {
		r.requestIDExtractor = fn
	}
}

func WithIPExtractor(fn ContextExtractor) Option {
	return func(r *Recorder) {
		r.ipExtractor = fn
	}
}

func WithUserAgentExtractor(fn ContextExtractor) Option {
	return func(r *Recorder) {
		r.userAgentExtractor = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder panics when writer is nil.
func NewRecorder(writer Writer, opts ...Option) *Recorder {
	if writer == nil {
		panic("audit: writer cannot be nil")
	}
	r := &Recorder{writer: writer, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log records a successful action.
func (r *Recorder) Log(ctx context.Context, action string, opts ...EventOption) error {
	return r.record(ctx, action, ResultSuccess, nil, opts)
}

// LogError records a failed action. Pass WithResult(ResultFailure) for
// rejections caused by the caller rather than the system.
func (r *Recorder) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	return r.record(ctx, action, ResultError, err, opts)
}

func (r *Recorder) record(ctx context.Context, action string, result Result, err error, opts []EventOption) error {
	event := r.eventFromContext(ctx)
	event.ID = uuid.NewString()
	event.CreatedAt = r.now().UTC()
	event.Action = action
	event.Result = result
	if err != nil {
		event.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return r.writer.Store(ctx, event)
}

func (r *Recorder) eventFromContext(ctx context.Context) Event {
	var event Event
	extract(ctx, r.userIDExtractor, &event.UserID)
	extract(ctx, r.requestIDExtractor, &event.RequestID)
	extract(ctx, r.ipExtractor, &event.IP)
	extract(ctx, r.userAgentExtractor, &event.UserAgent)
	return event
}

func extract(ctx context.Context, fn ContextExtractor, dst *string) {
	if fn == nil {
		return
	}
	if v, ok := fn(ctx); ok {
		*dst = v
	}
}
