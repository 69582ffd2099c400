package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/kafka"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

// Publisher is the part of kafka.Producer the gateway needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Record is the value written to Kafka for a push service to deliver.
type Record struct {
	Gateway      string         `json:"gateway"`
	DeviceToken  string         `json:"device_token,omitempty"`
	Notification Notification   `json:"notification"`
	Payload      map[string]any `json:"payload"`
}

// KafkaGateway queues notifications on a Kafka topic keyed by channel id, so
// one channel's pushes stay ordered.
type KafkaGateway struct {
	pub   Publisher
	topic string
	cfg   config.PushConfig
}

func NewKafkaGateway(pub Publisher, topic string, cfg config.PushConfig) (*KafkaGateway, error) {
	if pub == nil {
		return nil, errors.New("push: kafka publisher is required")
	}
	cfg.ApplyDefaults()
	return &KafkaGateway{pub: pub, topic: topic, cfg: cfg}, nil
}

func (g *KafkaGateway) Deliver(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	rec := Record{
		Gateway:      g.cfg.DeviceGateway,
		DeviceToken:  g.cfg.DeviceToken,
		Notification: n,
		Payload:      Payload(g.cfg, n),
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("push: marshal record: %w", err)
	}
	if err := g.pub.Publish(ctx, g.topic, []byte(n.ChannelID), value); err != nil {
		return fmt.Errorf("push: publish: %w", err)
	}
	log.WithTrace(ctx).WithFields(log.Fields{
		"component":  "push",
		"channel":    n.ChannelID,
		"recipients": len(n.Recipients),
	}).Debug("push queued")
	return nil
}

// Close does not close the publisher; it is shared.
func (g *KafkaGateway) Close() error { return nil }

// New picks a gateway for cfg: Nop unless pushes are enabled and a producer
// is available.
func New(cfg config.PushConfig, producer *kafka.Producer, topic string) Gateway {
	if !cfg.SendPushes {
		return Nop{}
	}
	if producer == nil {
		log.Component("push").Warn("send_pushes enabled without kafka, pushes are dropped")
		return Nop{}
	}
	g, err := NewKafkaGateway(producer, topic, cfg)
	if err != nil {
		log.Component("push").WithError(err).Warn("push gateway disabled")
		return Nop{}
	}
	return g
}
