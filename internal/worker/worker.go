// Package worker moves usage bookkeeping off the request path.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vnmchuo/teleaon-gateway/internal/usage"
)

const writeTimeout = 5 * time.Second

// Queue accepts usage records and writes them in the background.
type Queue interface {
	Enqueue(rec *usage.Record) bool
	Process(ctx context.Context) error // starts the worker loop
}

// Recorder fans each record out to an optional Postgres store and an optional
// Redis counter. A failing sink is logged and never affects the other.
type Recorder struct {
	store   usage.Store
	counter usage.Counter
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan *usage.Record
	done   chan struct{}
}

// NewRecorder buffers up to size records. store and counter may be nil.
func NewRecorder(store usage.Store, counter usage.Counter, size int, logger *slog.Logger) *Recorder {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		counter: counter,
		logger:  logger,
		jobs:    make(chan *usage.Record, size),
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. It reports false when the record was dropped because
// the buffer is full or the recorder is closed.
func (r *Recorder) Enqueue(rec *usage.Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	select {
	case r.jobs <- rec:
		return true
	default:
		r.logger.Warn("usage queue full, dropping record", "request_id", rec.RequestID, "provider", rec.Provider)
		return false
	}
}

// Process writes queued records until Close is called. Records still queued at
// that point are written before it returns. Cancelling ctx does not abort
// in-flight writes.
func (r *Recorder) Process(ctx context.Context) error {
	defer close(r.done)

	base := context.WithoutCancel(ctx)
	for rec := range r.jobs {
		r.write(base, rec)
	}
	return nil
}

// Close stops accepting records and waits for Process to drain the queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) write(ctx context.Context, rec *usage.Record) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Log(ctx, rec); err != nil {
			r.logger.Error("failed to store usage record", "request_id", rec.RequestID, "error", err)
		}
	}
	if r.counter != nil {
		if err := r.counter.Increment(ctx, rec); err != nil {
			r.logger.Error("failed to update usage counters", "request_id", rec.RequestID, "error", err)
		}
	}
}
