package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/arbor/pkg/ports"
)

// ErrBusClosed is returned by Publish after the bus was disconnected.
var ErrBusClosed = errors.New("memory bus: disconnected")

const defaultBuffer = 128

// Bus implements ports.Communicator in-process. Messages are queued on a
// buffered intake channel and delivered by a single dispatch goroutine, so
// handlers observe arrival order.
type Bus struct {
	intake  chan ports.Message
	closing chan struct{}
	done    chan struct{}

	mu     sync.RWMutex
	subs   []*busSubscription
	nextID int

	closeOnce sync.Once
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBuffer sets the intake queue capacity.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.intake = make(chan ports.Message, n)
		}
	}
}

// NewBus creates a connected in-process bus and starts its dispatch loop.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		intake:  make(chan ports.Message, defaultBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.dispatch()
	return b
}

// Publish queues a message for delivery. Fire-and-forget: a nil error means
// the message was queued, not that any handler saw it.
func (b *Bus) Publish(ctx context.Context, msg ports.Message) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}
	select {
	case b.intake <- msg:
		return nil
	case <-b.closing:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler. Handlers run on the dispatch goroutine.
func (b *Bus) Subscribe(filter ports.SubscriptionFilter, handler ports.Handler) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &busSubscription{bus: b, id: b.nextID, filter: filter, handler: handler}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Await blocks until the context is canceled or the bus disconnects.
func (b *Bus) Await(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return nil
	}
}

// Disconnect stops the dispatch loop. Queued but undelivered messages are
// dropped. Idempotent.
func (b *Bus) Disconnect() error {
	b.closeOnce.Do(func() {
		close(b.closing)
		<-b.done
	})
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)
	ctx := context.Background()
	for {
		select {
		case <-b.closing:
			return
		case msg := <-b.intake:
			b.deliver(ctx, msg)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, msg ports.Message) {
	b.mu.RLock()
	subs := make([]*busSubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.filter.Matches(msg) {
			sub.handler(ctx, msg)
		}
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

type busSubscription struct {
	bus     *Bus
	id      int
	filter  ports.SubscriptionFilter
	handler ports.Handler
}

func (s *busSubscription) Close() error {
	s.bus.unsubscribe(s.id)
	return nil
}
