package shell

import (
	"sync"

	"github.com/roach88/husk/internal/effect"
)

// Broker is an in-process pub-sub transport for subscription effects. Each
// subscription is one outstanding request id; a published payload becomes a
// Done=false resolution to every subscriber, and completing a topic sends
// the terminal Done=true delivery and forgets the subscribers.
//
// Safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	topics  map[string][]uint32
	deliver func(id uint32, res effect.Response)
}

// NewBroker creates an empty broker. The dispatcher wires deliver before
// use.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string][]uint32)}
}

// Subscribe registers request id as a subscriber of topic.
func (b *Broker) Subscribe(topic string, id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], id)
}

// Publish delivers payload to every subscriber of topic. Deliveries run on
// the caller's goroutine; the core serializes the resulting resolves.
func (b *Broker) Publish(topic string, payload []byte) {
	b.mu.Lock()
	ids := append([]uint32(nil), b.topics[topic]...)
	b.mu.Unlock()

	for _, id := range ids {
		b.deliver(id, effect.Response{
			Done:   false,
			Kind:   effect.KindPubSub,
			PubSub: &effect.PubSubMessage{Payload: payload},
		})
	}
}

// Complete terminates topic: every subscriber receives a Done delivery and
// the topic is forgotten. A new subscription to the same name starts fresh.
func (b *Broker) Complete(topic string) {
	b.mu.Lock()
	ids := b.topics[topic]
	delete(b.topics, topic)
	b.mu.Unlock()

	for _, id := range ids {
		b.deliver(id, effect.Response{
			Done:   true,
			Kind:   effect.KindPubSub,
			PubSub: &effect.PubSubMessage{},
		})
	}
}

// Subscribers reports the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
