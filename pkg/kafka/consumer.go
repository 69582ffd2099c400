package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
)

// RecordHandler processes one record. The context carries the producer's
// trace.
type RecordHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

// GroupHandler adapts a RecordHandler to sarama.ConsumerGroupHandler. Records
// are marked only when the handler succeeds.
type GroupHandler struct {
	Handle RecordHandler
}

func (GroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (GroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h GroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		headers := consumerHeaders(msg.Headers)
		ctx := otel.GetTextMapPropagator().Extract(sess.Context(), &headers)
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// Consume runs group over topics until ctx ends.
func Consume(ctx context.Context, group sarama.ConsumerGroup, topics []string, handle RecordHandler) error {
	handler := GroupHandler{Handle: handle}
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
