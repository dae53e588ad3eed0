package event

import "context"

// Handler consumes a published event. Handlers run asynchronously and
// must tolerate at-least-once delivery.
type Handler func(ctx context.Context, e Event) error

// Bus distributes domain events to subscribers.
//
// Publish is fire-and-forget from the caller's perspective: it never
// blocks on handler execution and delivery is at-least-once. Ordering
// is preserved best-effort per aggregate id.
type Bus interface {
	// Publish dispatches one event to all subscribers of its kind.
	Publish(ctx context.Context, e Event) error

	// PublishBatch dispatches events preserving their relative order.
	PublishBatch(ctx context.Context, events []Event) error

	// Subscribe registers a handler for a kind. Registration is not
	// safe to call concurrently with Publish.
	Subscribe(kind Kind, handler Handler)
}
