package chat

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Channel wraps a channel record as it was when fetched.
type Channel struct {
	wrapper
	data engine.ChannelData
}

func (c *Chat) wrapChannel(d engine.ChannelData) *Channel {
	ch := &Channel{wrapper: wrapper{chat: c, handle: d.Handle}, data: d}
	bind(channels, ch, &ch.wrapper)
	return ch
}

func (ch *Channel) ID() string               { return ch.data.ID }
func (ch *Channel) Name() string             { return ch.data.Name }
func (ch *Channel) Description() string      { return ch.data.Description }
func (ch *Channel) Status() string           { return ch.data.Status }
func (ch *Channel) Type() engine.ChannelType { return ch.data.Type }
func (ch *Channel) Custom() map[string]any   { return maps.Clone(ch.data.Custom) }

// PinnedMessageTimetoken is empty when nothing is pinned.
func (ch *Channel) PinnedMessageTimetoken() string { return ch.data.PinnedMessage }

// Data returns a copy of the underlying record.
func (ch *Channel) Data() engine.ChannelData {
	d := ch.data
	d.Custom = maps.Clone(d.Custom)
	return d
}

// Close releases the wrapper. It is safe to call more than once.
func (ch *Channel) Close() {
	unbind(channels, &ch.wrapper)
}

func (ch *Channel) eng() engine.Engine { return ch.chat.eng }

func (ch *Channel) Update(ctx context.Context, u engine.ChannelUpdate) (*Channel, error) {
	return ch.chat.UpdateChannel(ctx, ch.data.ID, u)
}

func (ch *Channel) UpdateAsync(u engine.ChannelUpdate, cb func(*Channel, error)) {
	async(ch, &ch.life, "channel.update", ch.eng().UpdateChannel(ch.data.ID, u), ch.chat.wrapChannel, cb)
}

func (ch *Channel) Delete(ctx context.Context, soft bool) (*Channel, error) {
	return ch.chat.DeleteChannel(ctx, ch.data.ID, soft)
}

func (ch *Channel) DeleteAsync(soft bool, cb func(*Channel, error)) {
	async(ch, &ch.life, "channel.delete", ch.eng().DeleteChannel(ch.data.ID, soft), ch.chat.wrapChannel, cb)
}

// Messages

func (ch *Channel) sendText(text string, opts []SendOption) bridge.Future[string] {
	o := sendOptions(opts)
	if t := ch.chat.opts.transform.Send; t != nil {
		text = t(text, &o)
	}
	return ch.eng().SendText(ch.data.ID, text, o)
}

// SendText publishes text and returns the message timetoken.
func (ch *Channel) SendText(ctx context.Context, text string, opts ...SendOption) (string, error) {
	return await(ctx, "channel.send_text", ch.sendText(text, opts), same[string])
}

func (ch *Channel) SendTextAsync(text string, cb func(string, error), opts ...SendOption) {
	async(ch, &ch.life, "channel.send_text", ch.sendText(text, opts), same[string], cb)
}

func (ch *Channel) wrapMessages(ds []engine.MessageData) []*Message {
	return mapSlice(ch.chat.wrapMessage)(ds)
}

// GetHistory returns stored messages, oldest first.
func (ch *Channel) GetHistory(ctx context.Context, q engine.HistoryQuery) ([]*Message, error) {
	return await(ctx, "channel.get_history", ch.eng().GetHistory(ch.data.ID, q), ch.wrapMessages)
}

func (ch *Channel) GetHistoryAsync(q engine.HistoryQuery, cb func([]*Message, error)) {
	async(ch, &ch.life, "channel.get_history", ch.eng().GetHistory(ch.data.ID, q), ch.wrapMessages, cb)
}

func (ch *Channel) GetMessage(ctx context.Context, timetoken string) (*Message, error) {
	return await(ctx, "channel.get_message", ch.eng().GetMessage(ch.data.ID, timetoken), ch.chat.wrapMessage)
}

func (ch *Channel) GetMessageAsync(timetoken string, cb func(*Message, error)) {
	async(ch, &ch.life, "channel.get_message", ch.eng().GetMessage(ch.data.ID, timetoken), ch.chat.wrapMessage, cb)
}

// Membership

func (ch *Channel) Join(ctx context.Context, custom map[string]any) (*Membership, error) {
	return await(ctx, "channel.join", ch.eng().Join(ch.data.ID, custom), ch.chat.wrapMembership)
}

func (ch *Channel) JoinAsync(custom map[string]any, cb func(*Membership, error)) {
	async(ch, &ch.life, "channel.join", ch.eng().Join(ch.data.ID, custom), ch.chat.wrapMembership, cb)
}

func (ch *Channel) Leave(ctx context.Context) error {
	_, err := await(ctx, "channel.leave", ch.eng().Leave(ch.data.ID), discard)
	return err
}

func (ch *Channel) LeaveAsync(cb func(error)) {
	async(ch, &ch.life, "channel.leave", ch.eng().Leave(ch.data.ID), discard, errOnly(cb))
}

func (ch *Channel) Invite(ctx context.Context, userID string) (*Membership, error) {
	return await(ctx, "channel.invite", ch.eng().Invite(ch.data.ID, userID), ch.chat.wrapMembership)
}

func (ch *Channel) InviteAsync(userID string, cb func(*Membership, error)) {
	async(ch, &ch.life, "channel.invite", ch.eng().Invite(ch.data.ID, userID), ch.chat.wrapMembership, cb)
}

// inviteAll chains the invites one after another and stops at the first
// failure.
func (ch *Channel) inviteAll(userIDs []string) bridge.Future[[]engine.MembershipData] {
	ids := slices.Clone(userIDs)
	return bridge.FutureFunc[[]engine.MembershipData](func(c bridge.Consumer[[]engine.MembershipData]) {
		out := make([]engine.MembershipData, 0, len(ids))
		var next func(i int)
		next = func(i int) {
			if i == len(ids) {
				c(bridge.Result[[]engine.MembershipData]{Value: out})
				return
			}
			ch.eng().Invite(ch.data.ID, ids[i]).Async(func(r bridge.Result[engine.MembershipData]) {
				if r.Err != nil {
					for _, m := range out {
						ch.eng().Release(m.Handle)
					}
					c(bridge.Result[[]engine.MembershipData]{Err: r.Err})
					return
				}
				out = append(out, r.Value)
				next(i + 1)
			})
		}
		next(0)
	})
}

// InviteMultiple invites each user in order.
func (ch *Channel) InviteMultiple(ctx context.Context, userIDs ...string) ([]*Membership, error) {
	return await(ctx, "channel.invite_multiple", ch.inviteAll(userIDs), ch.chat.wrapMemberships)
}

func (ch *Channel) InviteMultipleAsync(userIDs []string, cb func([]*Membership, error)) {
	async(ch, &ch.life, "channel.invite_multiple", ch.inviteAll(userIDs), ch.chat.wrapMemberships, cb)
}

func (ch *Channel) GetMembers(ctx context.Context) ([]*Membership, error) {
	return await(ctx, "channel.get_members", ch.eng().GetMembers(ch.data.ID), ch.chat.wrapMemberships)
}

func (ch *Channel) GetMembersAsync(cb func([]*Membership, error)) {
	async(ch, &ch.life, "channel.get_members", ch.eng().GetMembers(ch.data.ID), ch.chat.wrapMemberships, cb)
}

// Typing and presence

func (ch *Channel) StartTyping(ctx context.Context) error {
	_, err := await(ctx, "channel.start_typing", ch.eng().StartTyping(ch.data.ID), discard)
	return err
}

func (ch *Channel) StartTypingAsync(cb func(error)) {
	async(ch, &ch.life, "channel.start_typing", ch.eng().StartTyping(ch.data.ID), discard, errOnly(cb))
}

func (ch *Channel) StopTyping(ctx context.Context) error {
	_, err := await(ctx, "channel.stop_typing", ch.eng().StopTyping(ch.data.ID), discard)
	return err
}

func (ch *Channel) StopTypingAsync(cb func(error)) {
	async(ch, &ch.life, "channel.stop_typing", ch.eng().StopTyping(ch.data.ID), discard, errOnly(cb))
}

func (ch *Channel) WhoIsPresent(ctx context.Context) ([]string, error) {
	return await(ctx, "channel.who_is_present", ch.eng().WhoIsPresent(ch.data.ID), same[[]string])
}

func (ch *Channel) WhoIsPresentAsync(cb func([]string, error)) {
	async(ch, &ch.life, "channel.who_is_present", ch.eng().WhoIsPresent(ch.data.ID), same[[]string], cb)
}

func (ch *Channel) IsPresent(ctx context.Context, userID string) (bool, error) {
	ids, err := ch.WhoIsPresent(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, userID), nil
}

// Pinning

func (ch *Channel) PinMessage(ctx context.Context, msg *Message) (*Channel, error) {
	return await(ctx, "channel.pin_message", ch.eng().PinMessage(ch.data.ID, msg.Timetoken()), ch.chat.wrapChannel)
}

func (ch *Channel) PinMessageAsync(msg *Message, cb func(*Channel, error)) {
	async(ch, &ch.life, "channel.pin_message", ch.eng().PinMessage(ch.data.ID, msg.Timetoken()), ch.chat.wrapChannel, cb)
}

func (ch *Channel) UnpinMessage(ctx context.Context) (*Channel, error) {
	return await(ctx, "channel.unpin_message", ch.eng().UnpinMessage(ch.data.ID), ch.chat.wrapChannel)
}

func (ch *Channel) UnpinMessageAsync(cb func(*Channel, error)) {
	async(ch, &ch.life, "channel.unpin_message", ch.eng().UnpinMessage(ch.data.ID), ch.chat.wrapChannel, cb)
}

// GetPinnedMessage fetches the pinned message as of this snapshot. It
// returns nil without error when nothing is pinned.
func (ch *Channel) GetPinnedMessage(ctx context.Context) (*Message, error) {
	if ch.data.PinnedMessage == "" {
		return nil, nil
	}
	return ch.GetMessage(ctx, ch.data.PinnedMessage)
}

// Listeners

// Connect calls fn for every message published on the channel. Messages
// from muted users are skipped. The current user counts as present while
// the registration is open.
func (ch *Channel) Connect(fn func(*Message)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: message callback is required")
	}
	return listen(&ch.wrapper, ch,
		func(cb func(association.Handle, engine.MessageData)) (subscription.Closer, error) {
			return ch.eng().ListenMessages(ch.handle, ch.data.ID, cb)
		},
		func(h association.Handle, d engine.MessageData) *Message {
			return channels.Lookup(h).chat.wrapMessage(d)
		},
		messageHandle, fn)
}

// StreamMessages is the channel form of Connect.
func (ch *Channel) StreamMessages(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*Message], error) {
	return subscription.Open(ctx, ch.Connect, opts...)
}

// Messages is the iterator form of Connect.
func (ch *Channel) Messages(ctx context.Context) iter.Seq2[*Message, error] {
	return subscription.Seq(ctx, ch.Connect)
}

// OnTyping calls fn with the ids of the users typing whenever the set changes.
func (ch *Channel) OnTyping(fn func([]string)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: typing callback is required")
	}
	return listen(&ch.wrapper, ch,
		func(cb func(association.Handle, []string)) (subscription.Closer, error) {
			return ch.eng().ListenTyping(ch.handle, ch.data.ID, cb)
		},
		passthrough[[]string], nil, fn)
}

func (ch *Channel) StreamTyping(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[[]string], error) {
	return subscription.Open(ctx, ch.OnTyping, opts...)
}

// OnPresence calls fn with the present user ids whenever they change.
func (ch *Channel) OnPresence(fn func([]string)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: presence callback is required")
	}
	return listen(&ch.wrapper, ch,
		func(cb func(association.Handle, []string)) (subscription.Closer, error) {
			return ch.eng().ListenPresence(ch.handle, ch.data.ID, cb)
		},
		passthrough[[]string], nil, fn)
}

func (ch *Channel) StreamPresence(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[[]string], error) {
	return subscription.Open(ctx, ch.OnPresence, opts...)
}

// OnEvent calls fn for chat events emitted on this channel.
func (ch *Channel) OnEvent(fn func(Event)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: event callback is required")
	}
	return listen(&ch.wrapper, ch,
		func(cb func(association.Handle, engine.EventData)) (subscription.Closer, error) {
			return ch.eng().ListenEvents(ch.handle, ch.data.ID, cb)
		},
		toEvent, nil, fn)
}

func (ch *Channel) StreamEvents(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[Event], error) {
	return subscription.Open(ctx, ch.OnEvent, opts...)
}

// OnUpdate calls fn with the new state of the channel after every update,
// pin change or deletion.
func (ch *Channel) OnUpdate(fn func(*Channel)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: update callback is required")
	}
	return listen(&ch.wrapper, ch,
		func(cb func(association.Handle, engine.ChannelData)) (subscription.Closer, error) {
			return ch.eng().ListenChannelUpdates(ch.handle, ch.data.ID, cb)
		},
		func(h association.Handle, d engine.ChannelData) *Channel {
			return channels.Lookup(h).chat.wrapChannel(d)
		},
		channelHandle, fn)
}

func (ch *Channel) StreamUpdates(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*Channel], error) {
	return subscription.Open(ctx, ch.OnUpdate, opts...)
}

// EmitEvent publishes a custom event on the channel.
func (ch *Channel) EmitEvent(ctx context.Context, payload map[string]any) (string, error) {
	ev := Event{Type: engine.EventCustom, ChannelID: ch.data.ID, UserID: ch.chat.current.ID(), Payload: payload}
	return ch.chat.EmitEvent(ctx, ev)
}

// CreateMessageDraft starts a draft that sends to this channel.
func (ch *Channel) CreateMessageDraft() *MessageDraft {
	return newDraft(ch)
}
