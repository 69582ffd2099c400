package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	topics []string
	errs   []error
}

func (r *recordingObserver) ObservePublish(topic string, _ time.Duration, err error) {
	r.topics = append(r.topics, topic)
	r.errs = append(r.errs, err)
}

func TestPublishUsesDefaultTopic(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "chat.push" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})
	p := NewProducerWith(Config{Brokers: []string{"localhost:9092"}, Topic: "chat.push"}, mock)
	obs := &recordingObserver{}
	p.SetPublishObserver(obs)

	require.NoError(t, p.Publish(context.Background(), "", []byte("alice"), []byte(`{}`)))
	assert.Equal(t, []string{"chat.push"}, obs.topics)
	assert.Equal(t, []error{nil}, obs.errs)
	require.NoError(t, p.Close())
}

func TestPublishReportsFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerWith(Config{Topic: "chat.push"}, mock)

	err := p.Publish(context.Background(), "", nil, []byte(`{}`))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestPublishRequiresTopic(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(Config{}, mock)
	assert.EqualError(t, p.Publish(context.Background(), "", nil, nil), "kafka topic empty")
	require.NoError(t, p.Close())
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(Config{Topic: "chat.push"}, mock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNilProducer(t *testing.T) {
	var p *Producer
	assert.EqualError(t, p.Publish(context.Background(), "t", nil, nil), "kafka producer nil")
	assert.NoError(t, p.Close())
}

func TestSaramaConfig(t *testing.T) {
	_, err := Config{}.sarama()
	assert.EqualError(t, err, "kafka brokers empty")

	cfg, err := Config{
		Brokers:       []string{"b:9092"},
		Username:      "u",
		Password:      "p",
		SASLMechanism: "scram-sha-512",
		RequiredAcks:  "one",
		MaxAttempts:   5,
	}.sarama()
	require.NoError(t, err)
	assert.Equal(t, sarama.SASLTypeSCRAMSHA512, string(cfg.Net.SASL.Mechanism))
	assert.Equal(t, sarama.WaitForLocal, cfg.Producer.RequiredAcks)
	assert.Equal(t, 5, cfg.Producer.Retry.Max)
	assert.NotNil(t, cfg.Net.SASL.SCRAMClientGeneratorFunc())
}

func TestHeaderCarrier(t *testing.T) {
	var c headerCarrier
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
	assert.Empty(t, c.Get("missing"))

	in := []*sarama.RecordHeader{{Key: []byte("k"), Value: []byte("v")}, nil}
	out := consumerHeaders(in)
	assert.Equal(t, "v", out.Get("k"))
}
