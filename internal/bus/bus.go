// Package bus is the pub/sub edge between the service and the job workers.
// Workers publish progress messages to a per-client topic; the relay
// subscribes and forwards them to the client's live connection.
package bus

import "context"

// ClientTopic returns the topic carrying messages for one connected client.
func ClientTopic(clientID string) string {
	return "ws:" + clientID
}

// Message is one published payload with the topic it arrived on.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription is a live topic subscription. Messages delivers payloads until
// Close is called or the subscribe context is canceled, then the channel is
// closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus publishes and subscribes to named topics.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}
