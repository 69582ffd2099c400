package engine

import (
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
)

// ChannelType classifies channels for publish rate limiting and membership rules.
type ChannelType string

const (
	ChannelDirect  ChannelType = "direct"
	ChannelGroup   ChannelType = "group"
	ChannelPublic  ChannelType = "public"
	ChannelUnknown ChannelType = "unknown"
)

// UserData is the engine's view of a user.
type UserData struct {
	Handle     association.Handle
	ID         string
	Name       string
	ExternalID string
	ProfileURL string
	Email      string
	Custom     map[string]any
	Status     string
	Type       string
	Updated    time.Time
	LastActive time.Time
}

// MutedUsersKey is the custom data key of the synced mute list.
const MutedUsersKey = "mutedUsers"

// UserUpdate carries the fields to change; nil pointers are left as they are.
type UserUpdate struct {
	Name       *string
	ExternalID *string
	ProfileURL *string
	Email      *string
	Custom     map[string]any
	Status     *string
	Type       *string
}

// ChannelData is the engine's view of a channel or thread channel.
type ChannelData struct {
	Handle      association.Handle
	ID          string
	Name        string
	Description string
	Custom      map[string]any
	Status      string
	Type        ChannelType
	Updated     time.Time

	// PinnedMessage is the timetoken of the pinned message, empty if none.
	PinnedMessage string
	// ParentChannelID and ParentMessage are set on thread channels.
	ParentChannelID string
	ParentMessage   string
}

// IsThread reports whether c is a thread channel.
func (c ChannelData) IsThread() bool {
	return c.ParentChannelID != ""
}

// ChannelUpdate carries the fields to change; nil pointers are left as they are.
type ChannelUpdate struct {
	Name        *string
	Description *string
	Custom      map[string]any
	Status      *string
	Type        *ChannelType
}

// MembershipData links a user to a channel.
type MembershipData struct {
	Handle    association.Handle
	ChannelID string
	UserID    string
	Custom    map[string]any
	Status    string
	Type      string
	Updated   time.Time
	// LastReadMessage is the timetoken of the last read message.
	LastReadMessage string
}

// MentionedUser is a user mention inside a message text.
type MentionedUser struct {
	ID   string
	Name string
}

// ReferencedChannel is a #channel reference inside a message text.
type ReferencedChannel struct {
	ID   string
	Name string
}

// QuotedMessage is the quoted part of a reply.
type QuotedMessage struct {
	Timetoken string
	Text      string
	UserID    string
}

// MessageData is one published chat message.
type MessageData struct {
	Handle    association.Handle
	Timetoken string
	ChannelID string
	UserID    string
	Text      string
	Meta      map[string]any
	// Reactions maps a reaction to the users who left it.
	Reactions map[string][]string
	// EditedText wins over Text once set.
	EditedText string
	Deleted    bool
	// Mentions is keyed by rune offset in the text.
	Mentions           map[int]MentionedUser
	ReferencedChannels map[int]ReferencedChannel
	Quoted             *QuotedMessage
	HasThread          bool
	// ThreadRootChannel is set on messages published inside a thread.
	ThreadRootChannel string
	Published         time.Time
}

// SendOptions tunes SendText.
type SendOptions struct {
	Meta map[string]any
	// SkipHistory publishes without storing the message.
	SkipHistory bool
	SendByPost  bool
	// TTL expires the stored message; zero keeps it.
	TTL                time.Duration
	Mentions           map[int]MentionedUser
	ReferencedChannels map[int]ReferencedChannel
	Quoted             *QuotedMessage
}

// HistoryQuery bounds a history fetch by timetoken. Zero values mean unbounded.
type HistoryQuery struct {
	Start string
	End   string
	Count int
}

// Filter narrows user/channel listings.
type Filter struct {
	// Prefix matches the start of the name, case-insensitively.
	Prefix string
	Limit  int
}

// EventType enumerates chat-level events.
type EventType string

const (
	EventInvite   EventType = "invite"
	EventMention  EventType = "mention"
	EventReport   EventType = "report"
	EventReceipt  EventType = "receipt"
	EventModerate EventType = "moderation"
	EventCustom   EventType = "custom"
)

// EventData is a chat-level event emitted on a channel or to a user.
type EventData struct {
	ID        string
	Type      EventType
	ChannelID string
	UserID    string
	Payload   map[string]any
	Timetoken string
}

// Restriction describes a moderation restriction of a user on a channel.
type Restriction struct {
	UserID    string
	ChannelID string
	Ban       bool
	Mute      bool
	Reason    string
}

// DirectConversation is the result of creating a 1:1 channel.
type DirectConversation struct {
	Channel           ChannelData
	HostMembership    MembershipData
	InviteeMembership MembershipData
}
