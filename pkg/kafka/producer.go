package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
)

// PublishObserver sees the latency and outcome of every publish.
type PublishObserver interface {
	ObservePublish(topic string, duration time.Duration, err error)
}

// Producer owns a shared sync producer and the base sarama config used for
// consumer groups.
type Producer struct {
	cfg      Config
	producer sarama.SyncProducer
	base     *sarama.Config

	observerMu sync.RWMutex
	observer   PublishObserver

	closeOnce sync.Once
}

// NewProducer dials the configured brokers.
func NewProducer(cfg Config) (*Producer, error) {
	base, err := cfg.sarama()
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, base)
	if err != nil {
		return nil, err
	}
	return &Producer{cfg: cfg, producer: producer, base: base}, nil
}

// NewProducerWith wraps an existing sync producer, e.g. a mocks.SyncProducer.
func NewProducerWith(cfg Config, producer sarama.SyncProducer) *Producer {
	base, _ := cfg.sarama()
	return &Producer{cfg: cfg, producer: producer, base: base}
}

func (p *Producer) SetPublishObserver(observer PublishObserver) {
	if p == nil {
		return
	}
	p.observerMu.Lock()
	p.observer = observer
	p.observerMu.Unlock()
}

func (p *Producer) publishObserver() PublishObserver {
	p.observerMu.RLock()
	defer p.observerMu.RUnlock()
	return p.observer
}

// Publish sends value keyed by key to topic (cfg.Topic when empty). The
// current trace context travels in the record headers.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) (err error) {
	if p == nil {
		return errors.New("kafka producer nil")
	}
	if topic == "" {
		topic = p.cfg.Topic
	}
	start := time.Now()
	defer func() {
		if observer := p.publishObserver(); observer != nil {
			observer.ObservePublish(topic, time.Since(start), err)
		}
	}()
	if topic == "" {
		return errors.New("kafka topic empty")
	}

	var headers headerCarrier
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := &sarama.ProducerMessage{Topic: topic, Headers: headers}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	if len(value) > 0 {
		msg.Value = sarama.ByteEncoder(value)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	_, _, err = p.producer.SendMessage(msg)
	return err
}

// NewConsumerGroup returns a consumer group sharing the producer's settings.
func (p *Producer) NewConsumerGroup(group string) (sarama.ConsumerGroup, error) {
	if p == nil || p.base == nil {
		return nil, errors.New("kafka producer nil")
	}
	if group == "" {
		return nil, errors.New("kafka consumer group empty")
	}
	cfg := *p.base
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	return sarama.NewConsumerGroup(p.cfg.Brokers, group, &cfg)
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	var err error
	p.closeOnce.Do(func() {
		if p.producer != nil {
			err = p.producer.Close()
		}
	})
	return err
}
