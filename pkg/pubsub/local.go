package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
	"github.com/Goden-Gun/chat-bindings/pkg/tracing"
)

// ErrTransportClosed is returned after Close.
var ErrTransportClosed = errors.New("pubsub: transport closed")

// Local is an in-process transport. Publish runs handlers synchronously on
// the publishing goroutine.
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	closed bool
}

// NewLocal returns an empty in-process transport.
func NewLocal() *Local {
	return &Local{subs: make(map[string]map[uint64]Handler)}
}

func (l *Local) Publish(ctx context.Context, env envelope.Envelope) error {
	envelope.Normalize(&env)
	if err := envelope.Validate(&env); err != nil {
		return err
	}
	env.Attributes = tracing.InjectAttributes(ctx, env.Attributes)
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrTransportClosed
	}
	handlers := make([]Handler, 0, len(l.subs[env.Channel]))
	for _, h := range l.subs[env.Channel] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, env)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, channel string, h Handler) (subscription.Closer, error) {
	if channel == "" {
		return nil, errors.New("pubsub: channel is required")
	}
	if h == nil {
		return nil, errors.New("pubsub: handler is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrTransportClosed
	}
	l.nextID++
	id := l.nextID
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[uint64]Handler)
	}
	l.subs[channel][id] = h
	return subscription.Wrap(subscription.CloserFunc(func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if set, ok := l.subs[channel]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(l.subs, channel)
			}
		}
		return nil
	})), nil
}

// Subscribers counts live subscriptions on channel.
func (l *Local) Subscribers(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs[channel])
}

func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	l.subs = make(map[string]map[uint64]Handler)
	l.mu.Unlock()
	return nil
}
