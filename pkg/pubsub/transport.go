// Package pubsub is the realtime transport seam of the engine: frames are
// published to named channels and fanned out to every subscriber.
package pubsub

import (
	"context"

	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Handler receives frames for one subscription, in publish order.
type Handler func(ctx context.Context, env envelope.Envelope)

// Transport publishes and subscribes to channels.
type Transport interface {
	Publish(ctx context.Context, env envelope.Envelope) error
	Subscribe(ctx context.Context, channel string, h Handler) (subscription.Closer, error)
	Close() error
}
