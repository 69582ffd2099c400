package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
	"github.com/Goden-Gun/chat-bindings/pkg/tracing"
)

const defaultRedisPrefix = "chat"

// Redis carries frames over Redis Pub/Sub. Each Subscribe opens its own
// PubSub connection read by one goroutine, so per-subscription order holds.
type Redis struct {
	client redis.UniversalClient
	prefix string

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRedis builds a transport on client. Channel names are namespaced with
// prefix ("chat" when empty).
func NewRedis(client redis.UniversalClient, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, subs: make(map[*redis.PubSub]struct{})}, nil
}

func (r *Redis) key(channel string) string {
	return r.prefix + ":" + channel
}

func (r *Redis) Publish(ctx context.Context, env envelope.Envelope) error {
	envelope.Normalize(&env)
	if err := envelope.Validate(&env); err != nil {
		return err
	}
	env.Attributes = tracing.InjectAttributes(ctx, env.Attributes)
	if traceID := env.Attributes[tracing.TraceIDAttribute]; traceID != "" {
		envelope.StampTrace(&env, traceID)
	}
	data, err := envelope.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, r.key(env.Channel), data).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string, h Handler) (subscription.Closer, error) {
	if channel == "" {
		return nil, errors.New("pubsub: channel is required")
	}
	if h == nil {
		return nil, errors.New("pubsub: handler is required")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrTransportClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, r.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	r.mu.Lock()
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.receive(ps, channel, h)

	return subscription.Wrap(subscription.CloserFunc(func() error {
		r.mu.Lock()
		_, live := r.subs[ps]
		delete(r.subs, ps)
		r.mu.Unlock()
		if !live {
			return nil
		}
		return ps.Close()
	})), nil
}

func (r *Redis) receive(ps *redis.PubSub, channel string, h Handler) {
	defer r.wg.Done()
	entry := log.Component("pubsub").WithField("channel", channel)
	for msg := range ps.Channel() {
		env, err := envelope.Unmarshal([]byte(msg.Payload))
		if err != nil {
			entry.WithError(err).Warn("dropping malformed frame")
			continue
		}
		ctx := tracing.ExtractAttributes(context.Background(), env.Attributes)
		h(ctx, env)
	}
}

// Close ends every subscription and waits for their readers to exit. The
// client itself is left open; it belongs to the caller.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = make(map[*redis.PubSub]struct{})
	r.mu.Unlock()

	var errs []error
	for ps := range subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()
	return errors.Join(errs...)
}
