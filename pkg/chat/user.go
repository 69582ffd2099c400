package chat

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// User wraps a user record as it was when fetched.
type User struct {
	wrapper
	data engine.UserData
}

func (c *Chat) wrapUser(d engine.UserData) *User {
	u := &User{wrapper: wrapper{chat: c, handle: d.Handle}, data: d}
	bind(users, u, &u.wrapper)
	return u
}

func (u *User) ID() string             { return u.data.ID }
func (u *User) Name() string           { return u.data.Name }
func (u *User) Status() string         { return u.data.Status }
func (u *User) Custom() map[string]any { return maps.Clone(u.data.Custom) }
func (u *User) LastActive() time.Time  { return u.data.LastActive }

// Data returns a copy of the underlying record.
func (u *User) Data() engine.UserData {
	d := u.data
	d.Custom = maps.Clone(d.Custom)
	return d
}

// Active reports whether the user was seen within the chat's activity interval.
func (u *User) Active() bool {
	if u.data.LastActive.IsZero() {
		return false
	}
	return time.Since(u.data.LastActive) <= u.chat.opts.activityInterval
}

// MutedUsers returns the synced mute list stored on the user, if any.
func (u *User) MutedUsers() []string {
	switch v := u.data.Custom[engine.MutedUsersKey].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, id := range v {
			if s, ok := id.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Close releases the wrapper. It is safe to call more than once.
func (u *User) Close() {
	unbind(users, &u.wrapper)
}

// OnUpdate calls fn with the new state of the user after every update or
// deletion.
func (u *User) OnUpdate(fn func(*User)) (subscription.Closer, error) {
	if fn == nil {
		return nil, errors.New("chat: update callback is required")
	}
	return listen(&u.wrapper, u,
		func(cb func(association.Handle, engine.UserData)) (subscription.Closer, error) {
			return u.chat.eng.ListenUserUpdates(u.handle, u.data.ID, cb)
		},
		func(h association.Handle, d engine.UserData) *User {
			return users.Lookup(h).chat.wrapUser(d)
		},
		userHandle, fn)
}

func (u *User) StreamUpdates(ctx context.Context, opts ...subscription.Option) (*subscription.Stream[*User], error) {
	return subscription.Open(ctx, u.OnUpdate, opts...)
}

func (u *User) Update(ctx context.Context, upd engine.UserUpdate) (*User, error) {
	return u.chat.UpdateUser(ctx, u.data.ID, upd)
}

func (u *User) UpdateAsync(upd engine.UserUpdate, cb func(*User, error)) {
	async(u, &u.life, "user.update", u.chat.eng.UpdateUser(u.data.ID, upd), u.chat.wrapUser, cb)
}

func (u *User) Delete(ctx context.Context, soft bool) (*User, error) {
	return u.chat.DeleteUser(ctx, u.data.ID, soft)
}

func (u *User) DeleteAsync(soft bool, cb func(*User, error)) {
	async(u, &u.life, "user.delete", u.chat.eng.DeleteUser(u.data.ID, soft), u.chat.wrapUser, cb)
}

func (u *User) GetMemberships(ctx context.Context) ([]*Membership, error) {
	return await(ctx, "user.get_memberships", u.chat.eng.GetMemberships(u.data.ID), u.chat.wrapMemberships)
}

func (u *User) GetMembershipsAsync(cb func([]*Membership, error)) {
	async(u, &u.life, "user.get_memberships", u.chat.eng.GetMemberships(u.data.ID), u.chat.wrapMemberships, cb)
}

func (u *User) WherePresent(ctx context.Context) ([]string, error) {
	return u.chat.WherePresent(ctx, u.data.ID)
}

func (u *User) WherePresentAsync(cb func([]string, error)) {
	async(u, &u.life, "user.where_present", u.chat.eng.WherePresent(u.data.ID), same[[]string], cb)
}

func (u *User) IsPresentOn(ctx context.Context, channelID string) (bool, error) {
	return u.chat.IsPresent(ctx, u.data.ID, channelID)
}

// Report flags the user to the moderators of channelID.
func (u *User) Report(ctx context.Context, channelID, reason string) (string, error) {
	return u.chat.EmitEvent(ctx, reportEvent(channelID, u.data.ID, reason, nil))
}
