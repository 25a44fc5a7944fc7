package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// ErrBusClosed is returned by Publish after the bus was disconnected.
var ErrBusClosed = errors.New("redis bus: disconnected")

const defaultChannel = "arbor:broadcast"

// Bus implements ports.Communicator over Redis PUB/SUB. All messages share
// one channel; filtering by sender happens client-side. One dispatch
// goroutine per Bus consumes the subscription, so handlers observe arrival
// order.
type Bus struct {
	client     *backend.Client
	ownsClient bool
	channel    string
	pubsub     *backend.PubSub

	mu     sync.RWMutex
	subs   []*busSubscription
	nextID int

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithChannel sets the broadcast channel name.
func WithChannel(name string) BusOption {
	return func(b *Bus) {
		if name != "" {
			b.channel = name
		}
	}
}

// NewBus creates a bus with its own Redis client and starts dispatching.
func NewBus(address, password string, db int, opts ...BusOption) *Bus {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	bus := newBus(client, opts...)
	bus.ownsClient = true
	return bus
}

// NewBusFromClient creates a bus on an existing client. Disconnect leaves
// the client open.
func NewBusFromClient(client *backend.Client, opts ...BusOption) *Bus {
	return newBus(client, opts...)
}

func newBus(client *backend.Client, opts ...BusOption) *Bus {
	b := &Bus{
		client:  client,
		channel: defaultChannel,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pubsub = client.Subscribe(context.Background(), b.channel)
	go b.dispatch()
	return b
}

// Publish broadcasts the message on the shared channel.
func (b *Bus) Publish(ctx context.Context, msg ports.Message) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
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

// Disconnect closes the subscription and, when the bus owns it, the client.
// Idempotent.
func (b *Bus) Disconnect() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closing)
		err = b.pubsub.Close()
		<-b.done
		if b.ownsClient {
			if cerr := b.client.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (b *Bus) dispatch() {
	defer close(b.done)
	ctx := context.Background()
	for raw := range b.pubsub.Channel() {
		var msg ports.Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			// Foreign payload on the channel; not ours to deliver.
			continue
		}
		b.deliver(ctx, msg)
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
