package messaging

import "context"

// Broker is the pub/sub port the dispatcher publishes surfaced alerts on.
// Channels are per-user ("alerts:{userId}") so a future push transport can
// subscribe directly.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
