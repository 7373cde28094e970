package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campusmind/twofactor/pkg/logger"
)

// AsyncOptions tunes batching. Zero values pick the defaults.
type AsyncOptions struct {
	BufferSize     int           // events queued before Store writes synchronously
	BatchSize      int           // events per StoreBatch call
	BatchTimeout   time.Duration // max age of a partial batch
	StorageTimeout time.Duration // per batch
}

func (o AsyncOptions) withDefaults() AsyncOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 200 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	return o
}

// AsyncWriter queues events and flushes them in batches from one goroutine,
// so request handlers never wait on the audit sink.
type AsyncWriter struct {
	next   BatchWriter
	opts   AsyncOptions
	log    *slog.Logger
	events chan Event

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	stopped chan struct{}
}

// NewAsyncWriter starts the flush goroutine. Call Close on shutdown.
func NewAsyncWriter(next BatchWriter, opts AsyncOptions, log *slog.Logger) *AsyncWriter {
	if next == nil {
		panic("audit: batch writer cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	w := &AsyncWriter{
		next:    next,
		opts:    opts,
		log:     log.With(logger.Component("audit")),
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Store queues event. A full buffer falls back to a synchronous write.
func (w *AsyncWriter) Store(ctx context.Context, event Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrStorageNotAvailable
	}

	select {
	case w.events <- event:
		return nil
	default:
		return w.next.StoreBatch(ctx, []Event{event})
	}
}

func (w *AsyncWriter) run() {
	defer close(w.stopped)

	batch := make([]Event, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		defer cancel()
		if err := w.next.StoreBatch(ctx, batch); err != nil {
			w.log.Error("failed to flush audit events",
				slog.Int("count", len(batch)),
				logger.Error(err),
			)
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.events:
			batch = append(batch, e)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case e := <-w.events:
					batch = append(batch, e)
					if len(batch) >= w.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to be flushed.
// It is safe to call more than once.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
