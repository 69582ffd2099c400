package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// listen subscribes to channel and runs handle for every frame of type typ
// on the engine goroutine.
func (e *Engine) listen(h association.Handle, channel, typ string, handle func(env envelope.Envelope)) (subscription.Closer, error) {
	if !e.known(h) {
		return nil, fmt.Errorf("%w: unknown handle %d", engine.ErrInvalidArgument, h)
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, engine.ErrClosed
	}
	return e.transport.Subscribe(context.Background(), channel, func(_ context.Context, env envelope.Envelope) {
		if env.Type != typ {
			return
		}
		e.d.submit(func() { handle(env) })
	})
}

func decode[T any](e *Engine, env envelope.Envelope) (T, bool) {
	var v T
	if err := env.Decode(&v); err != nil {
		e.log.WithError(err).WithFields(map[string]any{"channel": env.Channel, "type": env.Type}).Warn("dropping undecodable frame")
		return v, false
	}
	return v, true
}

func (e *Engine) requireChannel(channelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.channelLocked(channelID)
	return err
}

// ListenMessages delivers new messages on channelID and marks the current
// user present there until the returned closer runs.
func (e *Engine) ListenMessages(h association.Handle, channelID string, fn func(association.Handle, engine.MessageData)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	sub, err := e.listen(h, channelID, envelope.TypeMessage, func(env envelope.Envelope) {
		msg, ok := decode[engine.MessageData](e, env)
		if !ok || e.isMuted(msg.UserID) {
			return
		}
		msg.Handle = e.issue()
		fn(h, msg)
	})
	if err != nil {
		return nil, err
	}
	e.setPresence(channelID, 1)
	return subscription.Wrap(subscription.CloserFunc(func() error {
		err := sub.Close()
		e.setPresence(channelID, -1)
		return err
	})), nil
}

func (e *Engine) setPresence(channelID string, delta int) {
	r := run(e, func(tx *txn) (engine.Empty, error) {
		set := e.presence[channelID]
		if set == nil {
			set = make(map[string]int)
			e.presence[channelID] = set
		}
		set[e.userID] += delta
		if set[e.userID] <= 0 {
			delete(set, e.userID)
		}
		tx.publish(e, envelope.TypePresence, channelID, presenceFrame{Occupants: e.occupantsLocked(channelID)})
		return engine.Empty{}, nil
	})
	if r.Err != nil {
		e.log.WithError(r.Err).WithField("channel", channelID).Debug("presence not updated")
	}
}

func (e *Engine) ListenPresence(h association.Handle, channelID string, fn func(association.Handle, []string)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	return e.listen(h, channelID, envelope.TypePresence, func(env envelope.Envelope) {
		if frame, ok := decode[presenceFrame](e, env); ok {
			fn(h, frame.Occupants)
		}
	})
}

// typers is the per-listener set of typing users. An entry expires after
// the typing timeout unless refreshed.
type typers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func (t *typers) list() []string {
	return sortedKeys(t.timers)
}

func (t *typers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
}

// ListenTyping reports the full list of typing users on every change.
func (e *Engine) ListenTyping(h association.Handle, channelID string, fn func(association.Handle, []string)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	timeout := e.cfg.TypingTimeout.Duration()
	state := &typers{timers: make(map[string]*time.Timer)}

	expire := func(userID string, timer *time.Timer) {
		state.mu.Lock()
		if state.closed || state.timers[userID] != timer {
			state.mu.Unlock()
			return
		}
		delete(state.timers, userID)
		list := state.list()
		state.mu.Unlock()
		fn(h, list)
	}

	sub, err := e.listen(h, channelID, envelope.TypeTyping, func(env envelope.Envelope) {
		frame, ok := decode[typingFrame](e, env)
		if !ok {
			return
		}
		state.mu.Lock()
		if state.closed {
			state.mu.Unlock()
			return
		}
		old, had := state.timers[frame.UserID]
		if had {
			old.Stop()
			delete(state.timers, frame.UserID)
		}
		if frame.Typing {
			var timer *time.Timer
			timer = time.AfterFunc(timeout, func() {
				e.d.submit(func() { expire(frame.UserID, timer) })
			})
			state.timers[frame.UserID] = timer
		}
		changed := frame.Typing != had
		list := state.list()
		state.mu.Unlock()
		if changed {
			fn(h, list)
		}
	})
	if err != nil {
		return nil, err
	}
	return subscription.Wrap(subscription.CloserFunc(func() error {
		state.stop()
		return sub.Close()
	})), nil
}

func (e *Engine) ListenMessageUpdates(h association.Handle, channelID, timetoken string, fn func(association.Handle, engine.MessageData)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	return e.listen(h, channelID, envelope.TypeMessageUpdate, func(env envelope.Envelope) {
		msg, ok := decode[engine.MessageData](e, env)
		if !ok || (timetoken != "" && msg.Timetoken != timetoken) {
			return
		}
		msg.Handle = e.issue()
		fn(h, msg)
	})
}

func (e *Engine) ListenMembershipUpdates(h association.Handle, channelID, userID string, fn func(association.Handle, engine.MembershipData)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	return e.listen(h, channelID, envelope.TypeMembership, func(env envelope.Envelope) {
		m, ok := decode[engine.MembershipData](e, env)
		if !ok || (userID != "" && m.UserID != userID) {
			return
		}
		m.Handle = e.issue()
		fn(h, m)
	})
}

// ListenUserUpdates delivers the new state of userID after every update or
// deletion.
func (e *Engine) ListenUserUpdates(h association.Handle, userID string, fn func(association.Handle, engine.UserData)) (subscription.Closer, error) {
	e.mu.Lock()
	_, err := e.userLocked(userID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return e.listen(h, userChannel(userID), envelope.TypeUserUpdate, func(env envelope.Envelope) {
		u, ok := decode[engine.UserData](e, env)
		if !ok {
			return
		}
		u.Handle = e.issue()
		fn(h, u)
	})
}

// ListenChannelUpdates delivers the new state of channelID after every
// update, pin change or deletion.
func (e *Engine) ListenChannelUpdates(h association.Handle, channelID string, fn func(association.Handle, engine.ChannelData)) (subscription.Closer, error) {
	if err := e.requireChannel(channelID); err != nil {
		return nil, err
	}
	return e.listen(h, channelID, envelope.TypeChannelUpdate, func(env envelope.Envelope) {
		c, ok := decode[engine.ChannelData](e, env)
		if !ok {
			return
		}
		c.Handle = e.issue()
		fn(h, c)
	})
}

func (e *Engine) ListenEvents(h association.Handle, channelID string, fn func(association.Handle, engine.EventData)) (subscription.Closer, error) {
	target := channelID
	if target == "" {
		target = userChannel(e.userID)
	}
	return e.listen(h, target, envelope.TypeEvent, func(env envelope.Envelope) {
		if ev, ok := decode[engine.EventData](e, env); ok {
			fn(h, ev)
		}
	})
}
