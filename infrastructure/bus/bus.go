// Package bus provides the in-process event bus.
//
// Each subscriber owns a bounded queue drained by a single goroutine, so
// publish order is preserved per subscriber and a slow handler only backs
// up its own queue instead of stalling publishers of other kinds.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/internal/errs"
)

const defaultQueueSize = 64

// Bus is an in-process event.Bus. The zero value is not usable; create
// one with New and Close it to flush queued events on shutdown.
type Bus struct {
	logger    *slog.Logger
	queueSize int

	mu          sync.Mutex
	subscribers map[event.Kind][]*subscriber
	closed      bool
	wg          sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize overrides the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates an event bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:      logger,
		queueSize:   defaultQueueSize,
		subscribers: make(map[event.Kind][]*subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type envelope struct {
	ctx context.Context
	e   event.Event
}

type subscriber struct {
	queue chan envelope
}

// Subscribe registers a handler for a kind and starts its delivery
// goroutine. Events published before the subscription are not replayed.
func (b *Bus) Subscribe(kind event.Kind, handler event.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	sub := &subscriber{queue: make(chan envelope, b.queueSize)}
	b.subscribers[kind] = append(b.subscribers[kind], sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for env := range sub.queue {
			b.deliver(env, kind, handler)
		}
	}()
}

func (b *Bus) deliver(env envelope, kind event.Kind, handler event.Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("kind", string(kind)),
				slog.String("aggregate_id", env.e.AggregateID()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := handler(env.ctx, env.e); err != nil {
		b.logger.Warn("event handler failed",
			slog.String("kind", string(kind)),
			slog.String("aggregate_id", env.e.AggregateID()),
			slog.String("error", err.Error()),
		)
	}
}

// Publish enqueues the event for every subscriber of its kind. A full
// subscriber queue applies backpressure until there is room or ctx ends.
// Events are delivered on a context detached from ctx's cancellation, so
// handlers outlive the publishing request.
func (b *Bus) Publish(ctx context.Context, e event.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errs.New(errs.KindInvalidState, "event bus is closed")
	}
	subs := b.subscribers[e.Kind()]
	b.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}

	env := envelope{ctx: context.WithoutCancel(ctx), e: e}
	for _, sub := range subs {
		select {
		case sub.queue <- env:
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", e.Kind(), ctx.Err())
		}
	}
	return nil
}

// PublishBatch publishes events in order. Individual failures do not
// stop the remaining events; all failures are returned joined.
func (b *Bus) PublishBatch(ctx context.Context, events []event.Event) error {
	var errList []error
	for _, e := range events {
		if err := b.Publish(ctx, e); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Close stops delivery after draining queued events. It is safe to call
// more than once; Publish after Close fails with an invalid-state error.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// LoggingHandler returns a handler that records every event, at warn
// level for failure kinds. Wire it with SubscribeLogging.
func LoggingHandler(logger *slog.Logger) event.Handler {
	return func(_ context.Context, e event.Event) error {
		attrs := []any{
			slog.String("kind", string(e.Kind())),
			slog.String("aggregate_id", e.AggregateID()),
		}
		if reason := e.PayloadValue(event.PayloadReason); reason != "" {
			attrs = append(attrs, slog.String("reason", reason))
		}

		if e.Kind().IsFailure() {
			logger.Warn("domain event", attrs...)
			return nil
		}
		logger.Info("domain event", attrs...)
		return nil
	}
}

// SubscribeLogging registers a logging handler for every event kind.
func SubscribeLogging(b *Bus, logger *slog.Logger) {
	handler := LoggingHandler(logger)
	for _, kind := range event.AllKinds() {
		b.Subscribe(kind, handler)
	}
}
