// Package pipeline is the single-consumer ingest pipeline: producers
// write RawTicks, the consumer normalizes, deduplicates, filters, and
// fans out to registered handlers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync/atomic"
	"time"

	"marketagg/internal/apperr"
	"marketagg/internal/dedup"
	"marketagg/internal/logger"
	"marketagg/internal/metrics"
	"marketagg/internal/model"
	"marketagg/internal/symbolfilter"
)

// QueueCapacity is the bounded queue's fixed capacity. Producers block
// when it is full — this is the pipeline's only backpressure signal,
// and it must never drop a tick.
const QueueCapacity = 10000

// Handler processes one normalized, deduplicated, allowed tick. A
// handler error is logged and swallowed: it never stops the pipeline
// or the remaining handlers for that tick.
type Handler interface {
	Name() string
	Handle(ctx context.Context, tick model.NormalizedTick) error
}

// Pipeline is the bounded single-consumer queue described in §4.3: one
// write-endpoint shared by all producer adapters, one consumer
// goroutine dispatching to handlers in registration order.
type Pipeline struct {
	queue chan model.RawTick

	dedup      dedup.Deduplicator
	filter     *symbolfilter.Filter
	metrics    *metrics.Registry
	handlers   []Handler

	started  int32 // atomic
	done     chan struct{}
}

// New constructs a Pipeline. Handlers must be registered with
// RegisterHandler before Start is called.
func New(deduplicator dedup.Deduplicator, filter *symbolfilter.Filter, reg *metrics.Registry) *Pipeline {
	return &Pipeline{
		queue:   make(chan model.RawTick, QueueCapacity),
		dedup:   deduplicator,
		filter:  filter,
		metrics: reg,
		done:    make(chan struct{}),
	}
}

// RegisterHandler appends a handler to the dispatch list. Calling this
// after Start is an error.
func (p *Pipeline) RegisterHandler(h Handler) error {
	if atomic.LoadInt32(&p.started) == 1 {
		return fmt.Errorf("pipeline: cannot register handler %q after Start", h.Name())
	}
	p.handlers = append(p.handlers, h)
	return nil
}

// Write enqueues a raw tick, blocking until there is room. This is the
// sole backpressure mechanism: it must never drop. Returns ctx.Err()
// if ctx is cancelled while waiting.
func (p *Pipeline) Write(ctx context.Context, tick model.RawTick) error {
	select {
	case p.queue <- tick:
		p.metrics.RecordTickReceived(tick.Exchange)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the single consumer goroutine. A second call returns
// an error; Start is idempotent-rejecting.
func (p *Pipeline) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return errors.New("pipeline: already started")
	}
	go p.run(ctx)
	return nil
}

// Close signals no more producers will write. Safe to call once, after
// all producer adapters have stopped.
func (p *Pipeline) Close() {
	close(p.queue)
}

// Done is closed once the consumer has drained the queue and returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case raw, ok := <-p.queue:
			if !ok {
				return
			}
			p.metrics.RecordPipelineQueueSize(len(p.queue))
			p.process(ctx, raw)
		case <-ctx.Done():
			p.drainRemaining(ctx)
			return
		}
	}
}

// drainRemaining processes whatever is already buffered before
// returning, per the spec's "consumer drains remaining items" shutdown
// contract.
func (p *Pipeline) drainRemaining(ctx context.Context) {
	for {
		select {
		case raw, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, raw)
		default:
			return
		}
	}
}

func (p *Pipeline) process(ctx context.Context, raw model.RawTick) {
	normalized := raw.Normalize()

	// Every tick gets its own trace id for the duration of its walk
	// through dedup/filter/handlers, so a handler-failure log line can
	// be correlated back to the originating tick.
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(normalized.Exchange, normalized.ReceivedAt))

	unique, err := p.dedup.IsUnique(ctx, normalized)
	if err != nil {
		if apperr.IsCanceled(ctx, err) {
			return
		}
		p.metrics.RecordError(normalized.Exchange, "dedup_backend")
		log.Printf("[pipeline] dedup backend error for %s: %v", normalized.Exchange, err)
		if !apperr.IsTransient(err) {
			return
		}
		// Transient backend errors degrade gracefully: treat the tick as
		// unique rather than dropping it, since a lost dedup window is
		// far cheaper than a silently lost tick.
		unique = true
	}
	if !unique {
		p.metrics.RecordDuplicateFiltered(normalized.Exchange)
		return
	}

	if !p.filter.Allows(normalized.Exchange, normalized.Symbol) {
		return
	}

	for _, h := range p.handlers {
		if err := p.safeHandle(ctx, h, normalized); err != nil {
			p.metrics.RecordError(normalized.Exchange, "handler_failure")
			slog.Default().With(logger.LogWithTrace(ctx)...).Error(
				apperr.NewHandlerFailureError(h.Name(), err).Error())
		}
	}

	latencyMs := float64(time.Since(normalized.ReceivedAt).Milliseconds())
	p.metrics.RecordTickProcessed(normalized.Exchange, latencyMs)
}

// safeHandle recovers a panicking handler so one bad handler can never
// take down the consumer loop or the handlers after it.
func (p *Pipeline) safeHandle(ctx context.Context, h Handler, tick model.NormalizedTick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, tick)
}
