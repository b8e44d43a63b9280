package bus

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus returns a Bus backed by the given Redis client.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

// Publish sends payload to every current subscriber of topic. Messages have
// no retention: a client that subscribes later never sees them.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

// Subscribe opens a subscription on topic. It confirms the subscription with
// the server before returning, so a Publish after Subscribe returns is
// guaranteed to be delivered.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:   ps,
		ch:   make(chan Message, 16),
		quit: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Message
	quit chan struct{}

	closeOnce sync.Once
}

// forward pumps pub/sub messages into the buffered Messages channel. A send
// that cannot proceed still honors Close, so a consumer that stops reading
// with the buffer full does not strand the goroutine.
func (s *redisSubscription) forward() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.quit:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.ch
}

// Close tears the subscription down; the Messages channel closes once the
// forwarder stops.
func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.quit) })
	return s.ps.Close()
}
