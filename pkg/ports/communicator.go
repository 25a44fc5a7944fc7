package ports

import "context"

// Message is a broadcast envelope. Sender is the pk of the process the
// message concerns (commands name their target, replies and state changes
// their origin). Body is the wire payload; the shapes live in pkg/domain.
type Message struct {
	Sender        int            `json:"sender"`
	Subject       string         `json:"subject"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Body          map[string]any `json:"body,omitempty"`
}

// SubscriptionFilter selects which messages a handler receives.
// The zero filter matches everything; pks are positive, so Sender 0 means
// "any sender".
type SubscriptionFilter struct {
	Sender int
}

// FilterBySender returns a filter matching only messages about one process.
func FilterBySender(pk int) SubscriptionFilter {
	return SubscriptionFilter{Sender: pk}
}

// Matches reports whether the message passes the filter.
func (f SubscriptionFilter) Matches(msg Message) bool {
	return f.Sender == 0 || f.Sender == msg.Sender
}

// Handler consumes one delivered message. Handlers for a given communicator
// instance run on its single dispatch goroutine, in arrival order, so they
// must not block indefinitely.
type Handler func(ctx context.Context, msg Message)

// Subscription is a live handler registration.
type Subscription interface {
	// Close unregisters the handler. Safe to call more than once.
	Close() error
}

// Communicator is the pub/sub transport between control panels, watchers
// and running processes.
//
// Publish is fire-and-forget: a nil error means the message was handed to
// the transport, never that anyone received it. Delivery feedback only
// exists at the protocol level, via correlated replies.
type Communicator interface {
	// Publish broadcasts a message. Errors cover local encoding or
	// transport failure only.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers a handler for messages matching the filter.
	Subscribe(filter SubscriptionFilter, handler Handler) (Subscription, error)

	// Await blocks the caller until the context is canceled or the
	// communicator disconnects, while deliveries keep flowing to
	// subscribed handlers. It returns ctx.Err() on cancellation and nil
	// on an orderly disconnect.
	Await(ctx context.Context) error

	// Disconnect stops the dispatch loop and releases the transport.
	// It is idempotent and safe to call concurrently.
	Disconnect() error
}
