package events

import "context"

// Bus is the pub/sub transport for Envelopes. Subscribe handlers that return
// an error cause the message to be dead-lettered, never redelivered.
type Bus interface {
	Publish(ctx context.Context, routingKey string, env Envelope) error
	Subscribe(ctx context.Context, routingKey string, handler func(ctx context.Context, env Envelope) error) error
	Close() error
}
