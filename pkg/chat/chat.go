// Package chat is the Go surface of the chat engine: wrappers for users,
// channels, threads, messages and memberships, each operation offered as a
// blocking call taking a context and as an XAsync variant with a completion
// callback.
//
// Wrappers hold engine handles. Close releases a wrapper's handle and drops
// it from the process-wide registries; a wrapper collected without Close has
// its handle released by a runtime cleanup. Listener registrations keep
// their wrapper reachable until the returned closer is closed.
package chat

import (
	"context"
	"errors"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Chat is the entry point bound to one engine.
type Chat struct {
	eng     engine.Engine
	opts    options
	life    bridge.Lifetime
	current *User
	log     *logrus.Entry
}

// New binds a Chat to eng.
func New(eng engine.Engine, opts ...Option) *Chat {
	o := options{activityInterval: defaultActivityInterval}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Chat{eng: eng, opts: o, log: log.Component("chat")}
	c.current = c.wrapUser(eng.CurrentUser())
	return c
}

// Engine returns the engine c is bound to.
func (c *Chat) Engine() engine.Engine { return c.eng }

// CurrentUser is the user the engine was configured for.
func (c *Chat) CurrentUser() *User { return c.current }

// Close releases the current user wrapper and, with WithEngineOwnership, the
// engine. Pending async callbacks owned by c receive bridge.ErrOwnerExpired.
func (c *Chat) Close() error {
	if !c.life.Release() {
		return nil
	}
	c.current.Close()
	if n := Purge(); n > 0 {
		c.log.WithField("entries", n).Debug("purged stale wrappers")
	}
	if c.opts.ownsEngine {
		return c.eng.Close()
	}
	return nil
}

func (c *Chat) wrapUsers(ds []engine.UserData) []*User {
	return mapSlice(c.wrapUser)(ds)
}

func (c *Chat) wrapChannels(ds []engine.ChannelData) []*Channel {
	return mapSlice(c.wrapChannel)(ds)
}

func (c *Chat) wrapMemberships(ds []engine.MembershipData) []*Membership {
	return mapSlice(c.wrapMembership)(ds)
}

// Users

func (c *Chat) CreateUser(ctx context.Context, u engine.UserData) (*User, error) {
	return await(ctx, "chat.create_user", c.eng.CreateUser(u), c.wrapUser)
}

func (c *Chat) CreateUserAsync(u engine.UserData, cb func(*User, error)) {
	async(c, &c.life, "chat.create_user", c.eng.CreateUser(u), c.wrapUser, cb)
}

func (c *Chat) GetUser(ctx context.Context, id string) (*User, error) {
	return await(ctx, "chat.get_user", c.eng.GetUser(id), c.wrapUser)
}

func (c *Chat) GetUserAsync(id string, cb func(*User, error)) {
	async(c, &c.life, "chat.get_user", c.eng.GetUser(id), c.wrapUser, cb)
}

func (c *Chat) GetUsers(ctx context.Context, f engine.Filter) ([]*User, error) {
	return await(ctx, "chat.get_users", c.eng.GetUsers(f), c.wrapUsers)
}

func (c *Chat) GetUsersAsync(f engine.Filter, cb func([]*User, error)) {
	async(c, &c.life, "chat.get_users", c.eng.GetUsers(f), c.wrapUsers, cb)
}

func (c *Chat) UpdateUser(ctx context.Context, id string, u engine.UserUpdate) (*User, error) {
	return await(ctx, "chat.update_user", c.eng.UpdateUser(id, u), c.wrapUser)
}

func (c *Chat) UpdateUserAsync(id string, u engine.UserUpdate, cb func(*User, error)) {
	async(c, &c.life, "chat.update_user", c.eng.UpdateUser(id, u), c.wrapUser, cb)
}

// DeleteUser removes a user. A soft delete keeps the record with status
// "deleted" and returns it; a hard delete returns the last known state.
func (c *Chat) DeleteUser(ctx context.Context, id string, soft bool) (*User, error) {
	return await(ctx, "chat.delete_user", c.eng.DeleteUser(id, soft), c.wrapUser)
}

func (c *Chat) DeleteUserAsync(id string, soft bool, cb func(*User, error)) {
	async(c, &c.life, "chat.delete_user", c.eng.DeleteUser(id, soft), c.wrapUser, cb)
}

// Channels

func (c *Chat) CreateChannel(ctx context.Context, d engine.ChannelData) (*Channel, error) {
	return await(ctx, "chat.create_channel", c.eng.CreateChannel(d), c.wrapChannel)
}

func (c *Chat) CreateChannelAsync(d engine.ChannelData, cb func(*Channel, error)) {
	async(c, &c.life, "chat.create_channel", c.eng.CreateChannel(d), c.wrapChannel, cb)
}

// CreatePublicConversation creates a public channel. Public channels have no
// memberships, typing or receipts.
func (c *Chat) CreatePublicConversation(ctx context.Context, d engine.ChannelData) (*Channel, error) {
	d.Type = engine.ChannelPublic
	return c.CreateChannel(ctx, d)
}

// GroupConversation is a new group channel with the memberships created for it.
type GroupConversation struct {
	Channel            *Channel
	HostMembership     *Membership
	InviteeMemberships []*Membership
}

// CreateGroupConversation creates a group channel, joins the current user and
// invites inviteeIDs. If joining or an invite fails, the channel stays in the
// engine and the partial conversation is returned with the error; the caller
// owns its wrappers. A failed invite leaves InviteeMemberships empty.
func (c *Chat) CreateGroupConversation(ctx context.Context, d engine.ChannelData, inviteeIDs ...string) (*GroupConversation, error) {
	d.Type = engine.ChannelGroup
	ch, err := c.CreateChannel(ctx, d)
	if err != nil {
		return nil, err
	}
	conv := &GroupConversation{Channel: ch}
	if conv.HostMembership, err = ch.Join(ctx, nil); err != nil {
		c.log.WithError(err).WithField("channel", ch.ID()).Warn("group join failed, channel kept")
		return conv, err
	}
	if conv.InviteeMemberships, err = ch.InviteMultiple(ctx, inviteeIDs...); err != nil {
		c.log.WithError(err).WithField("channel", ch.ID()).Warn("group invite failed, channel kept")
		return conv, err
	}
	return conv, nil
}

// Close releases every wrapper of the conversation.
func (g *GroupConversation) Close() {
	if g.Channel != nil {
		g.Channel.Close()
	}
	if g.HostMembership != nil {
		g.HostMembership.Close()
	}
	for _, m := range g.InviteeMemberships {
		m.Close()
	}
}

// DirectConversation is a 1:1 channel with both memberships.
type DirectConversation struct {
	Channel           *Channel
	HostMembership    *Membership
	InviteeMembership *Membership
}

func (c *Chat) wrapDirect(d engine.DirectConversation) *DirectConversation {
	return &DirectConversation{
		Channel:           c.wrapChannel(d.Channel),
		HostMembership:    c.wrapMembership(d.HostMembership),
		InviteeMembership: c.wrapMembership(d.InviteeMembership),
	}
}

// CreateDirectConversation returns the direct channel between the current
// user and inviteeID, creating it on first use.
func (c *Chat) CreateDirectConversation(ctx context.Context, inviteeID string, d engine.ChannelData) (*DirectConversation, error) {
	return await(ctx, "chat.create_direct_conversation", c.eng.CreateDirectConversation(inviteeID, d), c.wrapDirect)
}

func (c *Chat) CreateDirectConversationAsync(inviteeID string, d engine.ChannelData, cb func(*DirectConversation, error)) {
	async(c, &c.life, "chat.create_direct_conversation", c.eng.CreateDirectConversation(inviteeID, d), c.wrapDirect, cb)
}

func (c *Chat) GetChannel(ctx context.Context, id string) (*Channel, error) {
	return await(ctx, "chat.get_channel", c.eng.GetChannel(id), c.wrapChannel)
}

func (c *Chat) GetChannelAsync(id string, cb func(*Channel, error)) {
	async(c, &c.life, "chat.get_channel", c.eng.GetChannel(id), c.wrapChannel, cb)
}

func (c *Chat) GetChannels(ctx context.Context, f engine.Filter) ([]*Channel, error) {
	return await(ctx, "chat.get_channels", c.eng.GetChannels(f), c.wrapChannels)
}

func (c *Chat) GetChannelsAsync(f engine.Filter, cb func([]*Channel, error)) {
	async(c, &c.life, "chat.get_channels", c.eng.GetChannels(f), c.wrapChannels, cb)
}

func (c *Chat) UpdateChannel(ctx context.Context, id string, u engine.ChannelUpdate) (*Channel, error) {
	return await(ctx, "chat.update_channel", c.eng.UpdateChannel(id, u), c.wrapChannel)
}

func (c *Chat) UpdateChannelAsync(id string, u engine.ChannelUpdate, cb func(*Channel, error)) {
	async(c, &c.life, "chat.update_channel", c.eng.UpdateChannel(id, u), c.wrapChannel, cb)
}

func (c *Chat) DeleteChannel(ctx context.Context, id string, soft bool) (*Channel, error) {
	return await(ctx, "chat.delete_channel", c.eng.DeleteChannel(id, soft), c.wrapChannel)
}

func (c *Chat) DeleteChannelAsync(id string, soft bool, cb func(*Channel, error)) {
	async(c, &c.life, "chat.delete_channel", c.eng.DeleteChannel(id, soft), c.wrapChannel, cb)
}

// Presence

// WherePresent lists the channels userID is present on.
func (c *Chat) WherePresent(ctx context.Context, userID string) ([]string, error) {
	return await(ctx, "chat.where_present", c.eng.WherePresent(userID), same[[]string])
}

func (c *Chat) WherePresentAsync(userID string, cb func([]string, error)) {
	async(c, &c.life, "chat.where_present", c.eng.WherePresent(userID), same[[]string], cb)
}

// IsPresent reports whether userID is present on channelID.
func (c *Chat) IsPresent(ctx context.Context, userID, channelID string) (bool, error) {
	ids, err := c.WherePresent(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == channelID {
			return true, nil
		}
	}
	return false, nil
}

// Moderation

func (c *Chat) SetRestrictions(ctx context.Context, r engine.Restriction) error {
	_, err := await(ctx, "chat.set_restrictions", c.eng.SetRestrictions(r), discard)
	return err
}

func (c *Chat) SetRestrictionsAsync(r engine.Restriction, cb func(error)) {
	async(c, &c.life, "chat.set_restrictions", c.eng.SetRestrictions(r), discard, errOnly(cb))
}

// MuteUser hides userID's messages and returns the updated mute list.
func (c *Chat) MuteUser(ctx context.Context, userID string) ([]string, error) {
	return await(ctx, "chat.mute_user", c.eng.MuteUser(userID), same[[]string])
}

func (c *Chat) MuteUserAsync(userID string, cb func([]string, error)) {
	async(c, &c.life, "chat.mute_user", c.eng.MuteUser(userID), same[[]string], cb)
}

func (c *Chat) UnmuteUser(ctx context.Context, userID string) ([]string, error) {
	return await(ctx, "chat.unmute_user", c.eng.UnmuteUser(userID), same[[]string])
}

func (c *Chat) UnmuteUserAsync(userID string, cb func([]string, error)) {
	async(c, &c.life, "chat.unmute_user", c.eng.UnmuteUser(userID), same[[]string], cb)
}

// Events

// EmitEvent publishes a chat event and returns its id.
func (c *Chat) EmitEvent(ctx context.Context, ev Event) (string, error) {
	return await(ctx, "chat.emit_event", c.eng.EmitEvent(engine.EventData(ev)), same[string])
}

func (c *Chat) EmitEventAsync(ev Event, cb func(string, error)) {
	async(c, &c.life, "chat.emit_event", c.eng.EmitEvent(engine.EventData(ev)), same[string], cb)
}

// OnEvent calls fn for every event on channelID, or on the current user's
// own channel (invites, mentions, moderation) when channelID is empty.
func (c *Chat) OnEvent(channelID string, fn func(Event)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: event callback is required")
	}
	user := c.current
	return listen(&user.wrapper, user,
		func(cb func(association.Handle, engine.EventData)) (subscription.Closer, error) {
			return c.eng.ListenEvents(user.handle, channelID, cb)
		},
		toEvent, nil, fn)
}

// StreamEvents is the channel form of OnEvent.
func (c *Chat) StreamEvents(ctx context.Context, channelID string, opts ...subscription.Option) (*subscription.Stream[Event], error) {
	return subscription.Open(ctx, func(emit func(Event)) (subscription.Closer, error) {
		return c.OnEvent(channelID, emit)
	}, opts...)
}

// Events is the iterator form of OnEvent.
func (c *Chat) Events(ctx context.Context, channelID string) iter.Seq2[Event, error] {
	return subscription.Seq(ctx, func(emit func(Event)) (subscription.Closer, error) {
		return c.OnEvent(channelID, emit)
	})
}
