// Package engine is the contract of the chat engine the binding layer adapts.
//
// Every operation answers through a bridge.Future delivered on the engine's
// own goroutine. Listener registrations take the handle of the object the
// listener belongs to and pass it back with every event, so the binding layer
// can find the wrapper without the engine holding one.
package engine

import (
	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Empty is the success value of operations that return nothing.
type Empty struct{}

// Engine is the chat engine consumed by pkg/chat.
type Engine interface {
	CurrentUser() UserData

	CreateUser(u UserData) bridge.Future[UserData]
	GetUser(id string) bridge.Future[UserData]
	GetUsers(f Filter) bridge.Future[[]UserData]
	UpdateUser(id string, u UserUpdate) bridge.Future[UserData]
	DeleteUser(id string, soft bool) bridge.Future[UserData]
	GetMemberships(userID string) bridge.Future[[]MembershipData]
	WherePresent(userID string) bridge.Future[[]string]

	CreateChannel(c ChannelData) bridge.Future[ChannelData]
	CreateDirectConversation(inviteeID string, c ChannelData) bridge.Future[DirectConversation]
	GetChannel(id string) bridge.Future[ChannelData]
	GetChannels(f Filter) bridge.Future[[]ChannelData]
	UpdateChannel(id string, u ChannelUpdate) bridge.Future[ChannelData]
	DeleteChannel(id string, soft bool) bridge.Future[ChannelData]

	SendText(channelID, text string, opts SendOptions) bridge.Future[string]
	GetHistory(channelID string, q HistoryQuery) bridge.Future[[]MessageData]
	GetMessage(channelID, timetoken string) bridge.Future[MessageData]
	Join(channelID string, custom map[string]any) bridge.Future[MembershipData]
	Leave(channelID string) bridge.Future[Empty]
	Invite(channelID, userID string) bridge.Future[MembershipData]
	GetMembers(channelID string) bridge.Future[[]MembershipData]
	StartTyping(channelID string) bridge.Future[Empty]
	StopTyping(channelID string) bridge.Future[Empty]
	WhoIsPresent(channelID string) bridge.Future[[]string]
	PinMessage(channelID, timetoken string) bridge.Future[ChannelData]
	UnpinMessage(channelID string) bridge.Future[ChannelData]

	EditText(channelID, timetoken, text string) bridge.Future[MessageData]
	DeleteMessage(channelID, timetoken string, soft bool) bridge.Future[MessageData]
	RestoreMessage(channelID, timetoken string) bridge.Future[MessageData]
	ToggleReaction(channelID, timetoken, reaction string) bridge.Future[MessageData]
	CreateThread(channelID, timetoken string) bridge.Future[ChannelData]
	GetThread(channelID, timetoken string) bridge.Future[ChannelData]
	RemoveThread(channelID, timetoken string) bridge.Future[MessageData]

	UpdateMembership(channelID, userID string, custom map[string]any) bridge.Future[MembershipData]
	SetLastReadMessage(channelID, userID, timetoken string) bridge.Future[MembershipData]
	UnreadCount(channelID, userID string) bridge.Future[int]

	SetRestrictions(r Restriction) bridge.Future[Empty]
	MuteUser(userID string) bridge.Future[[]string]
	UnmuteUser(userID string) bridge.Future[[]string]
	EmitEvent(e EventData) bridge.Future[string]

	ListenMessages(h association.Handle, channelID string, fn func(association.Handle, MessageData)) (subscription.Closer, error)
	ListenTyping(h association.Handle, channelID string, fn func(association.Handle, []string)) (subscription.Closer, error)
	ListenPresence(h association.Handle, channelID string, fn func(association.Handle, []string)) (subscription.Closer, error)
	ListenMessageUpdates(h association.Handle, channelID, timetoken string, fn func(association.Handle, MessageData)) (subscription.Closer, error)
	ListenMembershipUpdates(h association.Handle, channelID, userID string, fn func(association.Handle, MembershipData)) (subscription.Closer, error)
	ListenUserUpdates(h association.Handle, userID string, fn func(association.Handle, UserData)) (subscription.Closer, error)
	ListenChannelUpdates(h association.Handle, channelID string, fn func(association.Handle, ChannelData)) (subscription.Closer, error)
	// ListenEvents listens on channelID, or on the current user's own event
	// channel when channelID is empty.
	ListenEvents(h association.Handle, channelID string, fn func(association.Handle, EventData)) (subscription.Closer, error)

	// Release tells the engine the binding layer dropped h.
	Release(h association.Handle)
	Close() error
}
