package chat

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Meta keys set on forwarded messages.
const (
	MetaOriginalPublisher = "originalPublisher"
	MetaOriginalChannelID = "originalChannelId"
)

// Message wraps a message as it was when fetched or received.
type Message struct {
	wrapper
	data engine.MessageData
}

func (c *Chat) wrapMessage(d engine.MessageData) *Message {
	if t := c.opts.transform.Receive; t != nil {
		h := d.Handle
		d = t(d)
		d.Handle = h
	}
	m := &Message{wrapper: wrapper{chat: c, handle: d.Handle}, data: d}
	bind(messages, m, &m.wrapper)
	return m
}

func (m *Message) Timetoken() string    { return m.data.Timetoken }
func (m *Message) ChannelID() string    { return m.data.ChannelID }
func (m *Message) UserID() string       { return m.data.UserID }
func (m *Message) Deleted() bool        { return m.data.Deleted }
func (m *Message) HasThread() bool      { return m.data.HasThread }
func (m *Message) Published() time.Time { return m.data.Published }

// Text is the edited text when there is one, the original otherwise.
func (m *Message) Text() string {
	if m.data.EditedText != "" {
		return m.data.EditedText
	}
	return m.data.Text
}

func (m *Message) OriginalText() string { return m.data.Text }
func (m *Message) Meta() map[string]any { return maps.Clone(m.data.Meta) }

func (m *Message) Quoted() *engine.QuotedMessage {
	if m.data.Quoted == nil {
		return nil
	}
	q := *m.data.Quoted
	return &q
}

func (m *Message) Mentions() map[int]engine.MentionedUser {
	return maps.Clone(m.data.Mentions)
}

func (m *Message) ReferencedChannels() map[int]engine.ReferencedChannel {
	return maps.Clone(m.data.ReferencedChannels)
}

// Reactions maps each reaction to the users who left it.
func (m *Message) Reactions() map[string][]string {
	out := make(map[string][]string, len(m.data.Reactions))
	for r, ids := range m.data.Reactions {
		out[r] = slices.Clone(ids)
	}
	return out
}

// HasUserReaction reports whether the current user left reaction.
func (m *Message) HasUserReaction(reaction string) bool {
	return slices.Contains(m.data.Reactions[reaction], m.chat.current.ID())
}

// Data returns a copy of the underlying message.
func (m *Message) Data() engine.MessageData {
	d := m.data
	d.Meta = maps.Clone(d.Meta)
	d.Reactions = m.Reactions()
	d.Mentions = m.Mentions()
	d.ReferencedChannels = m.ReferencedChannels()
	d.Quoted = m.Quoted()
	return d
}

// Close releases the wrapper. It is safe to call more than once.
func (m *Message) Close() {
	unbind(messages, &m.wrapper)
}

func (m *Message) eng() engine.Engine { return m.chat.eng }

// Edits

func (m *Message) EditText(ctx context.Context, text string) (*Message, error) {
	return await(ctx, "message.edit_text", m.eng().EditText(m.data.ChannelID, m.data.Timetoken, text), m.chat.wrapMessage)
}

func (m *Message) EditTextAsync(text string, cb func(*Message, error)) {
	async(m, &m.life, "message.edit_text", m.eng().EditText(m.data.ChannelID, m.data.Timetoken, text), m.chat.wrapMessage, cb)
}

// Delete removes the message. A soft delete keeps it in history flagged as
// deleted and returns it; a hard delete returns the last known state.
func (m *Message) Delete(ctx context.Context, soft bool) (*Message, error) {
	return await(ctx, "message.delete", m.eng().DeleteMessage(m.data.ChannelID, m.data.Timetoken, soft), m.chat.wrapMessage)
}

func (m *Message) DeleteAsync(soft bool, cb func(*Message, error)) {
	async(m, &m.life, "message.delete", m.eng().DeleteMessage(m.data.ChannelID, m.data.Timetoken, soft), m.chat.wrapMessage, cb)
}

// Restore undoes a soft delete.
func (m *Message) Restore(ctx context.Context) (*Message, error) {
	return await(ctx, "message.restore", m.eng().RestoreMessage(m.data.ChannelID, m.data.Timetoken), m.chat.wrapMessage)
}

func (m *Message) RestoreAsync(cb func(*Message, error)) {
	async(m, &m.life, "message.restore", m.eng().RestoreMessage(m.data.ChannelID, m.data.Timetoken), m.chat.wrapMessage, cb)
}

// ToggleReaction adds the current user's reaction or takes it back.
func (m *Message) ToggleReaction(ctx context.Context, reaction string) (*Message, error) {
	return await(ctx, "message.toggle_reaction", m.eng().ToggleReaction(m.data.ChannelID, m.data.Timetoken, reaction), m.chat.wrapMessage)
}

func (m *Message) ToggleReactionAsync(reaction string, cb func(*Message, error)) {
	async(m, &m.life, "message.toggle_reaction", m.eng().ToggleReaction(m.data.ChannelID, m.data.Timetoken, reaction), m.chat.wrapMessage, cb)
}

// Pin pins the message on its channel.
func (m *Message) Pin(ctx context.Context) (*Channel, error) {
	return await(ctx, "message.pin", m.eng().PinMessage(m.data.ChannelID, m.data.Timetoken), m.chat.wrapChannel)
}

func (m *Message) PinAsync(cb func(*Channel, error)) {
	async(m, &m.life, "message.pin", m.eng().PinMessage(m.data.ChannelID, m.data.Timetoken), m.chat.wrapChannel, cb)
}

// Forward republishes the message on channelID, recording where it came from.
func (m *Message) Forward(ctx context.Context, channelID string) (string, error) {
	return await(ctx, "message.forward", m.forward(channelID), same[string])
}

func (m *Message) ForwardAsync(channelID string, cb func(string, error)) {
	async(m, &m.life, "message.forward", m.forward(channelID), same[string], cb)
}

func (m *Message) forward(channelID string) bridge.Future[string] {
	if channelID == m.data.ChannelID {
		return bridge.Failed[string](errors.New("chat: cannot forward a message to its own channel"))
	}
	meta := maps.Clone(m.data.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	meta[MetaOriginalPublisher] = m.data.UserID
	meta[MetaOriginalChannelID] = m.data.ChannelID
	return m.eng().SendText(channelID, m.Text(), engine.SendOptions{Meta: meta})
}

// Report flags the message to the channel's moderators.
func (m *Message) Report(ctx context.Context, reason string) (string, error) {
	return m.chat.EmitEvent(ctx, reportEvent(m.data.ChannelID, m.data.UserID, reason, &m.data))
}

func (m *Message) ReportAsync(reason string, cb func(string, error)) {
	ev := reportEvent(m.data.ChannelID, m.data.UserID, reason, &m.data)
	async(m, &m.life, "message.report", m.eng().EmitEvent(engine.EventData(ev)), same[string], cb)
}

// Threads

func (m *Message) CreateThread(ctx context.Context) (*ThreadChannel, error) {
	return await(ctx, "message.create_thread", m.eng().CreateThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapThread)
}

func (m *Message) CreateThreadAsync(cb func(*ThreadChannel, error)) {
	async(m, &m.life, "message.create_thread", m.eng().CreateThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapThread, cb)
}

func (m *Message) GetThread(ctx context.Context) (*ThreadChannel, error) {
	return await(ctx, "message.get_thread", m.eng().GetThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapThread)
}

func (m *Message) GetThreadAsync(cb func(*ThreadChannel, error)) {
	async(m, &m.life, "message.get_thread", m.eng().GetThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapThread, cb)
}

// RemoveThread deletes the thread channel and returns the updated message.
func (m *Message) RemoveThread(ctx context.Context) (*Message, error) {
	return await(ctx, "message.remove_thread", m.eng().RemoveThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapMessage)
}

func (m *Message) RemoveThreadAsync(cb func(*Message, error)) {
	async(m, &m.life, "message.remove_thread", m.eng().RemoveThread(m.data.ChannelID, m.data.Timetoken), m.chat.wrapMessage, cb)
}

// Listeners

// OnUpdate calls fn with the new state of the message after every edit,
// reaction, deletion or restore.
func (m *Message) OnUpdate(fn func(*Message)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: update callback is required")
	}
	return listen(&m.wrapper, m,
		func(cb func(association.Handle, engine.MessageData)) (subscription.Closer, error) {
			return m.eng().ListenMessageUpdates(m.handle, m.data.ChannelID, m.data.Timetoken, cb)
		},
		func(h association.Handle, d engine.MessageData) *Message {
			return messages.Lookup(h).chat.wrapMessage(d)
		},
		messageHandle, fn)
}

func (m *Message) StreamUpdates(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*Message], error) {
	return subscription.Open(ctx, m.OnUpdate, opts...)
}
