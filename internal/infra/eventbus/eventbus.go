// Package eventbus is an in-memory publish/subscribe bus. The dispatcher
// publishes one event per tool invocation; the audit recorder consumes them
// off the request path.
//
// Design:
//   - Buffered channel per subscriber (buffer=64).
//   - Publish never blocks: if a subscriber's buffer is full the event is
//     dropped, so a slow consumer can never stall a dispatch.
//   - Subscribe returns a read-only channel; the caller owns the consumption
//     loop.
//   - No persistence at this layer; durable recording is the subscriber's job.
package eventbus

import "sync"

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const subscriberBuffer = 64

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe registers a new subscriber for topic and returns a read-only
// channel. The caller must consume it to keep receiving events.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends an Event to all subscribers of topic. Full buffers drop the
// event rather than blocking the publisher.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
