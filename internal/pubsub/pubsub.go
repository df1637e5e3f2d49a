package pubsub

import (
	"context"
)

// Message is the structure passed between components on the observer bus.
// Participant-visible traffic never goes through here; the bus only carries
// lifecycle facts that other parts of the process may want to watch.
type Message struct {
	// Topic identifies the event kind (e.g., "relay.participant.joined").
	Topic string
	// Source is the connection key of the participant that caused the event.
	Source string
	// Payload contains the JSON encoded event body.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., timestamps).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler
	// in the background until ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
