package chat

import (
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

const defaultActivityInterval = 600 * time.Second

// PayloadTransform rewrites message payloads on their way out and in. Either
// side may be nil.
type PayloadTransform struct {
	Send    func(text string, opts *engine.SendOptions) string
	Receive func(engine.MessageData) engine.MessageData
}

// Option configures a Chat.
type Option func(*options)

type options struct {
	transform        PayloadTransform
	activityInterval time.Duration
	ownsEngine       bool
}

// WithPayloadTransform installs t for every message sent or received.
func WithPayloadTransform(t PayloadTransform) Option {
	return func(o *options) { o.transform = t }
}

// WithActivityInterval sets how recent LastActive must be for User.Active.
func WithActivityInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.activityInterval = d
		}
	}
}

// WithEngineOwnership makes Chat.Close close the engine too.
func WithEngineOwnership() Option {
	return func(o *options) { o.ownsEngine = true }
}

// SendOption tunes one SendText call.
type SendOption func(*engine.SendOptions)

// WithMeta attaches free-form metadata to the message.
func WithMeta(meta map[string]any) SendOption {
	return func(o *engine.SendOptions) { o.Meta = meta }
}

// WithoutHistory publishes the message without storing it.
func WithoutHistory() SendOption {
	return func(o *engine.SendOptions) { o.SkipHistory = true }
}

// WithTTL expires the stored message after d.
func WithTTL(d time.Duration) SendOption {
	return func(o *engine.SendOptions) { o.TTL = d }
}

// WithSendByPost asks the engine to publish over its POST path.
func WithSendByPost() SendOption {
	return func(o *engine.SendOptions) { o.SendByPost = true }
}

// WithMentions marks user mentions keyed by rune offset.
func WithMentions(m map[int]engine.MentionedUser) SendOption {
	return func(o *engine.SendOptions) { o.Mentions = m }
}

// WithReferencedChannels marks #channel references keyed by rune offset.
func WithReferencedChannels(r map[int]engine.ReferencedChannel) SendOption {
	return func(o *engine.SendOptions) { o.ReferencedChannels = r }
}

// WithQuote quotes msg in the reply.
func WithQuote(msg *Message) SendOption {
	return func(o *engine.SendOptions) {
		if msg == nil {
			return
		}
		o.Quoted = &engine.QuotedMessage{Timetoken: msg.Timetoken(), Text: msg.Text(), UserID: msg.UserID()}
	}
}

func sendOptions(opts []SendOption) engine.SendOptions {
	var o engine.SendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
