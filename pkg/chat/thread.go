package chat

import (
	"context"
	"errors"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// ThreadChannel is a channel holding the replies to one message. Every
// Channel operation works on it.
type ThreadChannel struct {
	*Channel
}

func (c *Chat) wrapThread(d engine.ChannelData) *ThreadChannel {
	t := &ThreadChannel{Channel: c.wrapChannel(d)}
	threads.Associate(t, d.Handle)
	return t
}

func (t *ThreadChannel) ParentChannelID() string        { return t.data.ParentChannelID }
func (t *ThreadChannel) ParentMessageTimetoken() string { return t.data.ParentMessage }

// ParentMessage fetches the message the thread hangs off.
func (t *ThreadChannel) ParentMessage(ctx context.Context) (*Message, error) {
	return await(ctx, "thread.parent_message", t.eng().GetMessage(t.data.ParentChannelID, t.data.ParentMessage), t.chat.wrapMessage)
}

func (t *ThreadChannel) ParentMessageAsync(cb func(*Message, error)) {
	async(t, &t.life, "thread.parent_message", t.eng().GetMessage(t.data.ParentChannelID, t.data.ParentMessage), t.chat.wrapMessage, cb)
}

// OnUpdate calls fn with the new state of the thread channel after every
// change. It shadows Channel.OnUpdate so updates stay threads.
func (t *ThreadChannel) OnUpdate(fn func(*ThreadChannel)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: update callback is required")
	}
	return listen(&t.wrapper, t,
		func(cb func(association.Handle, engine.ChannelData)) (subscription.Closer, error) {
			return t.eng().ListenChannelUpdates(t.handle, t.data.ID, cb)
		},
		func(h association.Handle, d engine.ChannelData) *ThreadChannel {
			return threads.Lookup(h).chat.wrapThread(d)
		},
		channelHandle, fn)
}

func (t *ThreadChannel) StreamUpdates(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*ThreadChannel], error) {
	return subscription.Open(ctx, t.OnUpdate, opts...)
}

// Close releases the wrapper and its listeners. It is safe to call more than
// once.
func (t *ThreadChannel) Close() {
	t.Channel.Close()
	threads.Unregister(t.handle)
}
