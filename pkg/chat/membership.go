package chat

import (
	"context"
	"errors"
	"maps"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Membership wraps the link between a user and a channel.
type Membership struct {
	wrapper
	data engine.MembershipData
}

func (c *Chat) wrapMembership(d engine.MembershipData) *Membership {
	m := &Membership{wrapper: wrapper{chat: c, handle: d.Handle}, data: d}
	bind(memberships, m, &m.wrapper)
	return m
}

func (m *Membership) ChannelID() string      { return m.data.ChannelID }
func (m *Membership) UserID() string         { return m.data.UserID }
func (m *Membership) Status() string         { return m.data.Status }
func (m *Membership) Custom() map[string]any { return maps.Clone(m.data.Custom) }

// LastReadMessageTimetoken is empty until something was marked read.
func (m *Membership) LastReadMessageTimetoken() string { return m.data.LastReadMessage }

// Data returns a copy of the underlying record.
func (m *Membership) Data() engine.MembershipData {
	d := m.data
	d.Custom = maps.Clone(d.Custom)
	return d
}

// Close releases the wrapper. It is safe to call more than once.
func (m *Membership) Close() {
	unbind(memberships, &m.wrapper)
}

func (m *Membership) eng() engine.Engine { return m.chat.eng }

func (m *Membership) Channel(ctx context.Context) (*Channel, error) {
	return m.chat.GetChannel(ctx, m.data.ChannelID)
}

func (m *Membership) User(ctx context.Context) (*User, error) {
	return m.chat.GetUser(ctx, m.data.UserID)
}

// Update replaces the membership's custom data.
func (m *Membership) Update(ctx context.Context, custom map[string]any) (*Membership, error) {
	return await(ctx, "membership.update", m.eng().UpdateMembership(m.data.ChannelID, m.data.UserID, custom), m.chat.wrapMembership)
}

func (m *Membership) UpdateAsync(custom map[string]any, cb func(*Membership, error)) {
	async(m, &m.life, "membership.update", m.eng().UpdateMembership(m.data.ChannelID, m.data.UserID, custom), m.chat.wrapMembership, cb)
}

// SetLastReadMessage marks msg as the last one read. Outside public channels
// a receipt event is emitted.
func (m *Membership) SetLastReadMessage(ctx context.Context, msg *Message) (*Membership, error) {
	return m.SetLastReadMessageTimetoken(ctx, msg.Timetoken())
}

func (m *Membership) SetLastReadMessageAsync(msg *Message, cb func(*Membership, error)) {
	async(m, &m.life, "membership.set_last_read_message", m.eng().SetLastReadMessage(m.data.ChannelID, m.data.UserID, msg.Timetoken()), m.chat.wrapMembership, cb)
}

func (m *Membership) SetLastReadMessageTimetoken(ctx context.Context, timetoken string) (*Membership, error) {
	return await(ctx, "membership.set_last_read_message", m.eng().SetLastReadMessage(m.data.ChannelID, m.data.UserID, timetoken), m.chat.wrapMembership)
}

// GetUnreadMessagesCount counts stored messages newer than the last read one.
func (m *Membership) GetUnreadMessagesCount(ctx context.Context) (int, error) {
	return await(ctx, "membership.unread_count", m.eng().UnreadCount(m.data.ChannelID, m.data.UserID), same[int])
}

func (m *Membership) GetUnreadMessagesCountAsync(cb func(int, error)) {
	async(m, &m.life, "membership.unread_count", m.eng().UnreadCount(m.data.ChannelID, m.data.UserID), same[int], cb)
}

// OnUpdate calls fn with the new state after every change to the membership.
func (m *Membership) OnUpdate(fn func(*Membership)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: update callback is required")
	}
	return listen(&m.wrapper, m,
		func(cb func(association.Handle, engine.MembershipData)) (subscription.Closer, error) {
			return m.eng().ListenMembershipUpdates(m.handle, m.data.ChannelID, m.data.UserID, cb)
		},
		func(h association.Handle, d engine.MembershipData) *Membership {
			return memberships.Lookup(h).chat.wrapMembership(d)
		},
		membershipHandle, fn)
}

func (m *Membership) StreamUpdates(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*Membership], error) {
	return subscription.Open(ctx, m.OnUpdate, opts...)
}

// UnreadCount pairs a membership with its unread message count.
type UnreadCount struct {
	Membership *Membership
	Count      int
}

// GetUnreadMessagesCounts reports unread counts for every membership of the
// current user that has unread messages.
func (c *Chat) GetUnreadMessagesCounts(ctx context.Context) ([]UnreadCount, error) {
	ms, err := c.current.GetMemberships(ctx)
	if err != nil {
		return nil, err
	}
	var out []UnreadCount
	for _, m := range ms {
		n, err := m.GetUnreadMessagesCount(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			m.Close()
			continue
		}
		out = append(out, UnreadCount{Membership: m, Count: n})
	}
	return out, nil
}

// MarkAllMessagesAsRead moves every membership of the current user to the
// newest stored message of its channel and returns the updated memberships.
func (c *Chat) MarkAllMessagesAsRead(ctx context.Context) ([]*Membership, error) {
	ms, err := c.current.GetMemberships(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Membership, 0, len(ms))
	for _, m := range ms {
		history, err := await(ctx, "chat.mark_all_read", c.eng.GetHistory(m.data.ChannelID, engine.HistoryQuery{Count: 1}), same[[]engine.MessageData])
		if err != nil {
			return nil, err
		}
		for _, d := range history {
			c.eng.Release(d.Handle)
		}
		if len(history) == 0 {
			out = append(out, m)
			continue
		}
		updated, err := m.SetLastReadMessageTimetoken(ctx, history[len(history)-1].Timetoken)
		m.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, updated)
	}
	return out, nil
}
