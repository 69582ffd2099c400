package chat

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

const (
	mentionTrigger   = '@'
	referenceTrigger = '#'
	// minimum typed characters after a trigger before suggestions are looked up
	suggestionMinLength   = 3
	defaultSuggestionSize = 10
)

// ErrMentionOutOfRange is returned by AddMention when the draft text at the
// offset does not read "@" followed by the user's name.
var ErrMentionOutOfRange = errors.New("chat: mention outside the draft text")

// SuggestionKind says what a Suggestion would insert.
type SuggestionKind int

const (
	SuggestUser SuggestionKind = iota
	SuggestChannel
)

// Suggestion is a candidate completion for the @user or #channel word being
// typed. Offset and Replace locate that word in the draft, in runes.
type Suggestion struct {
	Kind    SuggestionKind
	Offset  int
	Replace string
	ID      string
	Name    string
}

// MessageDraft composes a message with user mentions, channel references and
// an optional quote. Offsets are rune offsets into the text.
type MessageDraft struct {
	ch    *Channel
	limit int

	mu         sync.Mutex
	text       []rune
	mentions   map[int]engine.MentionedUser
	references map[int]engine.ReferencedChannel
	quoted     *engine.QuotedMessage
}

func newDraft(ch *Channel) *MessageDraft {
	return &MessageDraft{
		ch:         ch,
		limit:      defaultSuggestionSize,
		mentions:   make(map[int]engine.MentionedUser),
		references: make(map[int]engine.ReferencedChannel),
	}
}

// SetSuggestionLimit caps how many suggestions Update returns per lookup.
func (d *MessageDraft) SetSuggestionLimit(n int) {
	if n > 0 {
		d.mu.Lock()
		d.limit = n
		d.mu.Unlock()
	}
}

func (d *MessageDraft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

func (d *MessageDraft) Mentions() map[int]engine.MentionedUser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.mentions)
}

func (d *MessageDraft) ReferencedChannels() map[int]engine.ReferencedChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.references)
}

// Update replaces the text, drops mentions and references the edit broke,
// and looks up suggestions for the trigger word nearest the end.
func (d *MessageDraft) Update(ctx context.Context, text string) ([]Suggestion, error) {
	d.mu.Lock()
	d.text = []rune(text)
	maps.DeleteFunc(d.mentions, func(off int, u engine.MentionedUser) bool {
		return !d.spans(off, string(mentionTrigger)+u.Name)
	})
	maps.DeleteFunc(d.references, func(off int, r engine.ReferencedChannel) bool {
		return !d.spans(off, string(referenceTrigger)+r.Name)
	})
	word, off, ok := d.pendingWord()
	limit := d.limit
	d.mu.Unlock()
	if !ok {
		return nil, nil
	}

	filter := engine.Filter{Prefix: string(word[1:]), Limit: limit}
	eng := d.ch.chat.eng
	switch word[0] {
	case mentionTrigger:
		found, err := bridge.Await(ctx, bridge.WithOp("draft.suggest_users", eng.GetUsers(filter)))
		if err != nil {
			return nil, err
		}
		out := make([]Suggestion, 0, len(found))
		for _, u := range found {
			eng.Release(u.Handle)
			out = append(out, Suggestion{Kind: SuggestUser, Offset: off, Replace: string(word), ID: u.ID, Name: u.Name})
		}
		return out, nil
	default:
		found, err := bridge.Await(ctx, bridge.WithOp("draft.suggest_channels", eng.GetChannels(filter)))
		if err != nil {
			return nil, err
		}
		out := make([]Suggestion, 0, len(found))
		for _, c := range found {
			eng.Release(c.Handle)
			out = append(out, Suggestion{Kind: SuggestChannel, Offset: off, Replace: string(word), ID: c.ID, Name: c.Name})
		}
		return out, nil
	}
}

// spans reports whether the text at off reads s. Caller holds d.mu.
func (d *MessageDraft) spans(off int, s string) bool {
	r := []rune(s)
	if off < 0 || off+len(r) > len(d.text) {
		return false
	}
	return slices.Equal(d.text[off:off+len(r)], r)
}

// pendingWord finds the last @ or # word that is long enough and not yet
// resolved. Caller holds d.mu.
func (d *MessageDraft) pendingWord() ([]rune, int, bool) {
	end := len(d.text)
	for end > 0 {
		start := end
		for start > 0 && !unicode.IsSpace(d.text[start-1]) {
			start--
		}
		word := d.text[start:end]
		if len(word) > suggestionMinLength && (word[0] == mentionTrigger || word[0] == referenceTrigger) {
			_, mentioned := d.mentions[start]
			_, referenced := d.references[start]
			if !mentioned && !referenced {
				return slices.Clone(word), start, true
			}
		}
		end = start
		for end > 0 && unicode.IsSpace(d.text[end-1]) {
			end--
		}
	}
	return nil, 0, false
}

// InsertSuggestion replaces the suggested word with the full name and
// records the mention or reference. Later offsets shift accordingly.
func (d *MessageDraft) InsertSuggestion(s Suggestion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.spans(s.Offset, s.Replace) {
		return fmt.Errorf("chat: draft no longer contains %q at %d", s.Replace, s.Offset)
	}
	trigger := mentionTrigger
	if s.Kind == SuggestChannel {
		trigger = referenceTrigger
	}
	insert := []rune(string(trigger) + s.Name)
	old := len([]rune(s.Replace))
	d.text = slices.Concat(d.text[:s.Offset], insert, d.text[s.Offset+old:])
	d.shift(s.Offset, len(insert)-old)
	if s.Kind == SuggestChannel {
		d.references[s.Offset] = engine.ReferencedChannel{ID: s.ID, Name: s.Name}
	} else {
		d.mentions[s.Offset] = engine.MentionedUser{ID: s.ID, Name: s.Name}
	}
	return nil
}

// shift moves every marker after off by delta. Caller holds d.mu.
func (d *MessageDraft) shift(off, delta int) {
	if delta == 0 {
		return
	}
	mentions := make(map[int]engine.MentionedUser, len(d.mentions))
	for o, u := range d.mentions {
		if o > off {
			o += delta
		}
		mentions[o] = u
	}
	d.mentions = mentions
	references := make(map[int]engine.ReferencedChannel, len(d.references))
	for o, r := range d.references {
		if o > off {
			o += delta
		}
		references[o] = r
	}
	d.references = references
}

// AddMention marks the user's name at offset as a mention. The text there
// must read "@" followed by the user's name.
func (d *MessageDraft) AddMention(offset int, user engine.MentionedUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.spans(offset, string(mentionTrigger)+user.Name) {
		return ErrMentionOutOfRange
	}
	d.mentions[offset] = user
	return nil
}

func (d *MessageDraft) RemoveMention(offset int) {
	d.mu.Lock()
	delete(d.mentions, offset)
	d.mu.Unlock()
}

// QuoteMessage quotes msg in the draft; nil clears the quote. Only messages
// from the draft's channel can be quoted.
func (d *MessageDraft) QuoteMessage(msg *Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if msg == nil {
		d.quoted = nil
		return nil
	}
	if msg.ChannelID() != d.ch.ID() {
		return fmt.Errorf("chat: cannot quote a message from %s in %s", msg.ChannelID(), d.ch.ID())
	}
	d.quoted = &engine.QuotedMessage{Timetoken: msg.Timetoken(), Text: msg.Text(), UserID: msg.UserID()}
	return nil
}

func (d *MessageDraft) sendOptions(extra []SendOption) []SendOption {
	d.mu.Lock()
	defer d.mu.Unlock()
	opts := []SendOption{
		WithMentions(maps.Clone(d.mentions)),
		WithReferencedChannels(maps.Clone(d.references)),
	}
	if q := d.quoted; q != nil {
		cp := *q
		opts = append(opts, func(o *engine.SendOptions) { o.Quoted = &cp })
	}
	return append(opts, extra...)
}

// Send publishes the draft on its channel.
func (d *MessageDraft) Send(ctx context.Context, opts ...SendOption) (string, error) {
	text := d.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("chat: draft is empty")
	}
	return d.ch.SendText(ctx, text, d.sendOptions(opts)...)
}

func (d *MessageDraft) SendAsync(cb func(string, error), opts ...SendOption) {
	d.ch.SendTextAsync(d.Text(), cb, d.sendOptions(opts)...)
}
