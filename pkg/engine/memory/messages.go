package memory

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	"github.com/Goden-Gun/chat-bindings/pkg/push"
)

const (
	defaultHistoryCount = 25
	maxHistoryCount     = 100
)

func threadChannelID(channelID, timetoken string) string {
	return "thread." + channelID + "." + timetoken
}

// userChannel carries events addressed to one user.
func userChannel(userID string) string {
	return "user." + userID
}

func (e *Engine) messageOut(m *message) engine.MessageData {
	out := cloneMessage(m.data)
	out.Handle = e.issue()
	return out
}

func (e *Engine) messageLocked(channelID, timetoken string) (*message, error) {
	for _, m := range e.history[channelID] {
		if m.data.Timetoken == timetoken {
			if e.expired(m) {
				break
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s/%s", engine.ErrNotFound, channelID, timetoken)
}

func (e *Engine) expired(m *message) bool {
	return !m.expires.IsZero() && !e.now().Before(m.expires)
}

// restrictedLocked reports ban or mute of userID on channelID.
func (e *Engine) restrictedLocked(channelID, userID string) (engine.Restriction, bool) {
	r, ok := e.restrictions[channelID][userID]
	return r, ok && (r.Ban || r.Mute)
}

// SendText publishes text on channelID and resolves with its timetoken.
// Publishes are spaced per channel type; a throttled send is delayed on a
// timer instead of blocking the engine goroutine.
func (e *Engine) SendText(channelID, text string, opts engine.SendOptions) bridge.Future[string] {
	return bridge.FutureFunc[string](func(c bridge.Consumer[string]) {
		rejected := func() { c(bridge.Result[string]{Err: engine.ErrClosed}) }
		send := func() {
			c(run(e, func(tx *txn) (string, error) {
				return e.sendLocked(tx, channelID, text, opts)
			}))
		}
		e.enqueue(func() {
			wait, err := e.admit(channelID, text)
			if err != nil {
				c(bridge.Result[string]{Err: err})
				return
			}
			if wait <= 0 {
				send()
				return
			}
			e.log.WithField("channel", channelID).WithField("wait", wait).Debug("publish throttled")
			time.AfterFunc(wait, func() { e.enqueue(send, rejected) })
		}, rejected)
	})
}

func (e *Engine) admit(channelID, text string) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, engine.ErrClosed
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: message text is empty", engine.ErrInvalidArgument)
	}
	c, err := e.channelLocked(channelID)
	if err != nil {
		return 0, err
	}
	if err := e.canAccess(channelID); err != nil {
		return 0, err
	}
	if r, ok := e.restrictedLocked(channelID, e.userID); ok {
		return 0, fmt.Errorf("%w: %s", engine.ErrUnauthorized, restrictionLabel(r))
	}
	typ := c.Type
	if c.IsThread() {
		if parent, ok := e.channels[c.ParentChannelID]; ok {
			typ = parent.Type
		}
	}
	return e.limiter.admit(channelID, typ, e.now())
}

func (e *Engine) sendLocked(tx *txn, channelID, text string, opts engine.SendOptions) (string, error) {
	c, err := e.channelLocked(channelID)
	if err != nil {
		return "", err
	}
	now := e.now()
	m := &message{data: engine.MessageData{
		Timetoken:          e.clock.next(now),
		ChannelID:          channelID,
		UserID:             e.userID,
		Text:               text,
		Meta:               maps.Clone(opts.Meta),
		Mentions:           maps.Clone(opts.Mentions),
		ReferencedChannels: maps.Clone(opts.ReferencedChannels),
		Published:          now,
	}}
	if opts.Quoted != nil {
		q := *opts.Quoted
		m.data.Quoted = &q
	}
	if c.IsThread() {
		m.data.ThreadRootChannel = c.ParentChannelID
	}
	if opts.TTL > 0 {
		m.expires = now.Add(opts.TTL)
	}
	if !opts.SkipHistory {
		e.history[channelID] = append(e.history[channelID], m)
	}
	tx.publish(e, envelope.TypeMessage, channelID, m.data)
	delete(e.typingSent, channelID)

	for _, mention := range sortedMentions(opts.Mentions) {
		if mention.ID == e.userID {
			continue
		}
		e.emitLocked(tx, engine.EventData{
			Type:      engine.EventMention,
			UserID:    mention.ID,
			ChannelID: channelID,
			Payload:   map[string]any{"messageTimetoken": m.data.Timetoken, "channel": channelID},
		})
	}
	if e.cfg.PushNotifications.SendPushes {
		e.queuePushLocked(tx, c, m)
	}
	return m.data.Timetoken, nil
}

func sortedMentions(m map[int]engine.MentionedUser) []engine.MentionedUser {
	offsets := slices.Sorted(maps.Keys(m))
	out := make([]engine.MentionedUser, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, m[off])
	}
	return out
}

func (e *Engine) queuePushLocked(tx *txn, c *engine.ChannelData, m *message) {
	var recipients []string
	for _, id := range sortedKeys(e.members[c.ID]) {
		if id != e.userID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	sender := e.users[e.userID]
	tx.pushes = append(tx.pushes, push.Notification{
		ChannelID:   c.ID,
		ChannelName: c.Name,
		SenderID:    e.userID,
		SenderName:  sender.Name,
		Text:        m.data.Text,
		Timetoken:   m.data.Timetoken,
		Recipients:  recipients,
	})
}

// GetHistory returns stored messages older than q.Start and not older than
// q.End, oldest first, at most q.Count of the newest. Messages of muted users
// are left out.
func (e *Engine) GetHistory(channelID string, q engine.HistoryQuery) bridge.Future[[]engine.MessageData] {
	return call(e, func(*txn) ([]engine.MessageData, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return nil, err
		}
		count := q.Count
		if count <= 0 {
			count = defaultHistoryCount
		}
		count = min(count, maxHistoryCount)

		var picked []*message
		msgs := e.history[channelID]
		for i := len(msgs) - 1; i >= 0 && len(picked) < count; i-- {
			m := msgs[i]
			tt := m.data.Timetoken
			if q.Start != "" && tt >= q.Start {
				continue
			}
			if q.End != "" && tt < q.End {
				break
			}
			if e.expired(m) || slices.Contains(e.muted, m.data.UserID) {
				continue
			}
			picked = append(picked, m)
		}
		out := make([]engine.MessageData, 0, len(picked))
		for i := len(picked) - 1; i >= 0; i-- {
			out = append(out, e.messageOut(picked[i]))
		}
		return out, nil
	})
}

func (e *Engine) GetMessage(channelID, timetoken string) bridge.Future[engine.MessageData] {
	return call(e, func(*txn) (engine.MessageData, error) {
		m, err := e.messageLocked(channelID, timetoken)
		if err != nil {
			return engine.MessageData{}, err
		}
		return e.messageOut(m), nil
	})
}

// updateMessage applies fn to a stored message and publishes the result as
// a message update.
func (e *Engine) updateMessage(channelID, timetoken string, fn func(tx *txn, m *message) error) bridge.Future[engine.MessageData] {
	return call(e, func(tx *txn) (engine.MessageData, error) {
		m, err := e.messageLocked(channelID, timetoken)
		if err != nil {
			return engine.MessageData{}, err
		}
		if err := fn(tx, m); err != nil {
			return engine.MessageData{}, err
		}
		tx.publish(e, envelope.TypeMessageUpdate, channelID, m.data)
		return e.messageOut(m), nil
	})
}

func (e *Engine) EditText(channelID, timetoken, text string) bridge.Future[engine.MessageData] {
	return e.updateMessage(channelID, timetoken, func(_ *txn, m *message) error {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: message text is empty", engine.ErrInvalidArgument)
		}
		if m.data.Deleted {
			return fmt.Errorf("%w: message is deleted", engine.ErrInvalidArgument)
		}
		m.data.EditedText = text
		return nil
	})
}

// DeleteMessage flags the message when soft. A hard delete removes it from
// history along with its thread.
func (e *Engine) DeleteMessage(channelID, timetoken string, soft bool) bridge.Future[engine.MessageData] {
	return e.updateMessage(channelID, timetoken, func(_ *txn, m *message) error {
		m.data.Deleted = true
		if soft {
			return nil
		}
		if m.data.HasThread {
			e.dropChannelLocked(threadChannelID(channelID, timetoken))
			m.data.HasThread = false
		}
		if c, ok := e.channels[channelID]; ok && c.PinnedMessage == timetoken {
			c.PinnedMessage = ""
		}
		e.history[channelID] = slices.DeleteFunc(e.history[channelID], func(x *message) bool { return x == m })
		return nil
	})
}

func (e *Engine) RestoreMessage(channelID, timetoken string) bridge.Future[engine.MessageData] {
	return e.updateMessage(channelID, timetoken, func(_ *txn, m *message) error {
		if !m.data.Deleted {
			return fmt.Errorf("%w: message is not deleted", engine.ErrInvalidArgument)
		}
		m.data.Deleted = false
		return nil
	})
}

// ToggleReaction adds or removes the current user's reaction.
func (e *Engine) ToggleReaction(channelID, timetoken, reaction string) bridge.Future[engine.MessageData] {
	return e.updateMessage(channelID, timetoken, func(_ *txn, m *message) error {
		if reaction == "" {
			return fmt.Errorf("%w: reaction is empty", engine.ErrInvalidArgument)
		}
		if m.data.Reactions == nil {
			m.data.Reactions = map[string][]string{}
		}
		users := m.data.Reactions[reaction]
		if i := slices.Index(users, e.userID); i >= 0 {
			users = slices.Delete(users, i, i+1)
		} else {
			users = append(users, e.userID)
		}
		if len(users) == 0 {
			delete(m.data.Reactions, reaction)
		} else {
			m.data.Reactions[reaction] = users
		}
		return nil
	})
}

// CreateThread opens a thread channel under a message. Messages that are
// themselves in a thread cannot have one.
func (e *Engine) CreateThread(channelID, timetoken string) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		m, err := e.messageLocked(channelID, timetoken)
		if err != nil {
			return engine.ChannelData{}, err
		}
		if m.data.ThreadRootChannel != "" {
			return engine.ChannelData{}, fmt.Errorf("%w: only one level of thread nesting is allowed", engine.ErrInvalidArgument)
		}
		if m.data.Deleted {
			return engine.ChannelData{}, fmt.Errorf("%w: message is deleted", engine.ErrInvalidArgument)
		}
		if m.data.HasThread {
			return engine.ChannelData{}, fmt.Errorf("%w: thread for %s", engine.ErrAlreadyExists, timetoken)
		}
		parent := e.channels[channelID]
		rec, err := e.createChannelLocked(engine.ChannelData{
			ID:              threadChannelID(channelID, timetoken),
			Name:            "Thread on channel " + channelID + " with message timetoken " + timetoken,
			Type:            parent.Type,
			ParentChannelID: channelID,
			ParentMessage:   timetoken,
		})
		if err != nil {
			return engine.ChannelData{}, err
		}
		m.data.HasThread = true
		tx.publish(e, envelope.TypeMessageUpdate, channelID, m.data)
		return e.channelOut(rec), nil
	})
}

func (e *Engine) GetThread(channelID, timetoken string) bridge.Future[engine.ChannelData] {
	return call(e, func(*txn) (engine.ChannelData, error) {
		m, err := e.messageLocked(channelID, timetoken)
		if err != nil {
			return engine.ChannelData{}, err
		}
		c, ok := e.channels[threadChannelID(channelID, timetoken)]
		if !m.data.HasThread || !ok {
			return engine.ChannelData{}, fmt.Errorf("%w: no thread for %s", engine.ErrNotFound, timetoken)
		}
		return e.channelOut(c), nil
	})
}

func (e *Engine) RemoveThread(channelID, timetoken string) bridge.Future[engine.MessageData] {
	return e.updateMessage(channelID, timetoken, func(_ *txn, m *message) error {
		if !m.data.HasThread {
			return fmt.Errorf("%w: no thread for %s", engine.ErrNotFound, timetoken)
		}
		e.dropChannelLocked(threadChannelID(channelID, timetoken))
		m.data.HasThread = false
		return nil
	})
}

// EmitEvent publishes a chat event on its channel, or to the target user
// when no channel is given. It resolves with the event id.
func (e *Engine) EmitEvent(ev engine.EventData) bridge.Future[string] {
	return call(e, func(tx *txn) (string, error) {
		if ev.Type == "" {
			return "", fmt.Errorf("%w: event type is required", engine.ErrInvalidArgument)
		}
		if ev.ChannelID == "" && ev.UserID == "" {
			return "", fmt.Errorf("%w: event needs a channel or a user", engine.ErrInvalidArgument)
		}
		return e.emitLocked(tx, ev), nil
	})
}

// emitLocked routes user-targeted events (invite, mention, moderation) to
// the user's own channel and everything else to ev.ChannelID.
func (e *Engine) emitLocked(tx *txn, ev engine.EventData) string {
	ev.ID = uuid.NewString()
	ev.Timetoken = e.clock.next(e.now())
	ev.Payload = maps.Clone(ev.Payload)
	target := ev.ChannelID
	switch ev.Type {
	case engine.EventInvite, engine.EventMention, engine.EventModerate:
		if ev.UserID != "" {
			target = userChannel(ev.UserID)
		}
	}
	if target == "" {
		target = userChannel(ev.UserID)
	}
	tx.publish(e, envelope.TypeEvent, target, ev)
	return ev.ID
}
