package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensource-finance/heron/internal/domain"
)

// ChannelBus is the in-process Community tier bus. Subscribers are indexed
// by topic; a published message is delivered to subscribers of the same
// tenant and to wildcard subscribers of the topic. Delivery is
// non-blocking: a subscriber whose buffer is full misses the message
// rather than stalling the publisher.
type ChannelBus struct {
	mu     sync.RWMutex
	buffer int
	topics map[string][]*channelSub
	closed bool
}

type channelSub struct {
	bus      *ChannelBus
	tenantID string
	topic    string
	ch       chan *domain.Message
	cancel   context.CancelFunc
}

// NewChannelBus creates an in-process bus with the given per-subscriber
// buffer size.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		buffer: bufferSize,
		topics: make(map[string][]*channelSub),
	}
}

// Publish sends a message on a topic under one tenant.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if tenantID == domain.TenantWildcard {
		return fmt.Errorf("cannot publish as the wildcard tenant")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	var targets []*channelSub
	for _, sub := range b.topics[topic] {
		if sub.tenantID == tenantID || sub.tenantID == domain.TenantWildcard {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	msg := newMessage(tenantID, topic, payload)
	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber buffer full, drop for this subscriber.
		}
	}
	return nil
}

// Subscribe registers a handler for one tenant's messages on a topic, or
// for every tenant's when tenantID is domain.TenantWildcard.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSub{
		bus:      b,
		tenantID: tenantID,
		topic:    topic,
		ch:       make(chan *domain.Message, b.buffer),
		cancel:   cancel,
	}
	b.topics[topic] = append(b.topics[topic], sub)

	go sub.run(subCtx, handler)
	return sub, nil
}

func (s *channelSub) run(ctx context.Context, handler domain.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.ch:
			_ = handler(ctx, msg)
		}
	}
}

// Ping reports bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops all subscriptions. Subscriber channels are abandoned rather
// than closed so a racing Publish can never send on a closed channel.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.topics = make(map[string][]*channelSub)
	return nil
}

// remove drops one subscription from the topic index.
func (b *ChannelBus) remove(target *channelSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.topics[target.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Unsubscribe stops the handler and removes the subscription from the bus.
func (s *channelSub) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSub) Topic() string {
	return s.topic
}
