package chat

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/engine/memory"
)

const wait = 5 * time.Second

func newTestEngine(t *testing.T, userID string) *memory.Engine {
	t.Helper()
	e, err := memory.New(context.Background(), memory.Options{Chat: config.ChatConfig{
		UserID:              userID,
		SyncMutedUsers:      true,
		RateLimitPerChannel: map[string]time.Duration{"group": 0, "public": 0, "direct": 0},
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestChat(t *testing.T, opts ...Option) (*Chat, *memory.Engine) {
	t.Helper()
	e := newTestEngine(t, "alice")
	c := New(e, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, e
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	t.Cleanup(cancel)
	return ctx
}

func newGroup(t *testing.T, c *Chat, id string) *Channel {
	t.Helper()
	ch, err := c.CreateChannel(testContext(t), engine.ChannelData{ID: id, Name: id, Type: engine.ChannelGroup})
	require.NoError(t, err)
	return ch
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(wait):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

// gatedEngine holds GetMessage results until gate is closed.
type gatedEngine struct {
	engine.Engine
	gate chan struct{}
}

func (g *gatedEngine) GetMessage(channelID, timetoken string) bridge.Future[engine.MessageData] {
	f := g.Engine.GetMessage(channelID, timetoken)
	return bridge.FutureFunc[engine.MessageData](func(c bridge.Consumer[engine.MessageData]) {
		go func() {
			<-g.gate
			f.Async(c)
		}()
	})
}

func TestCurrentUser(t *testing.T) {
	c, _ := newTestChat(t)
	assert.Equal(t, "alice", c.CurrentUser().ID())
}

func TestUserLifecycle(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)

	bob, err := c.CreateUser(ctx, engine.UserData{ID: "bob", Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.Name())

	_, err = c.CreateUser(ctx, engine.UserData{ID: "bob"})
	assert.ErrorIs(t, err, engine.ErrAlreadyExists)
	var engErr *bridge.EngineError
	assert.ErrorAs(t, err, &engErr)

	name := "Robert"
	renamed, err := bob.Update(ctx, engine.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Robert", renamed.Name())
	assert.Equal(t, "Bob", bob.Name(), "wrappers are snapshots")

	found, err := c.GetUsers(ctx, engine.Filter{Prefix: "rob"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].ID())

	deleted, err := bob.Delete(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "deleted", deleted.Status())
}

func TestAsyncCompletion(t *testing.T) {
	c, _ := newTestChat(t)
	done := make(chan *User, 1)
	c.CreateUserAsync(engine.UserData{ID: "bob"}, func(u *User, err error) {
		assert.NoError(t, err)
		done <- u
	})
	assert.Equal(t, "bob", receive(t, done).ID())

	errs := make(chan error, 1)
	c.GetUserAsync("nobody", func(u *User, err error) {
		assert.Nil(t, u)
		errs <- err
	})
	assert.ErrorIs(t, receive(t, errs), engine.ErrNotFound)
}

func TestAsyncOwnerExpired(t *testing.T) {
	e := newTestEngine(t, "alice")
	g := &gatedEngine{Engine: e, gate: make(chan struct{})}
	c := New(g)
	ctx := testContext(t)

	ch := newGroup(t, c, "general")
	tt, err := ch.SendText(ctx, "hello")
	require.NoError(t, err)

	errs := make(chan error, 1)
	ch.GetMessageAsync(tt, func(m *Message, err error) {
		assert.Nil(t, m)
		errs <- err
	})
	ch.Close()
	close(g.gate)
	assert.ErrorIs(t, receive(t, errs), bridge.ErrOwnerExpired)
}

func TestAwaitAbandonsOnContext(t *testing.T) {
	e := newTestEngine(t, "alice")
	g := &gatedEngine{Engine: e, gate: make(chan struct{})}
	defer close(g.gate)
	c := New(g)

	ch := newGroup(t, c, "general")
	tt, err := ch.SendText(testContext(t), "hello")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ch.GetMessage(ctx, tt)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseReleasesHandles(t *testing.T) {
	c, e := newTestChat(t)
	before := e.Outstanding()

	u, err := c.CreateUser(testContext(t), engine.UserData{ID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, before+1, e.Outstanding())
	_, ok := users.Find(u.handle)
	assert.True(t, ok)

	u.Close()
	u.Close()
	assert.Equal(t, before, e.Outstanding())
	_, ok = users.Find(u.handle)
	assert.False(t, ok)
}

func TestCollectedWrapperReleasesHandle(t *testing.T) {
	c, e := newTestChat(t)
	before := e.Outstanding()

	var h association.Handle
	func() {
		u, err := c.CreateUser(testContext(t), engine.UserData{ID: "bob"})
		require.NoError(t, err)
		h = u.handle
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return e.Outstanding() == before
	}, wait, 10*time.Millisecond)
	_, ok := users.Find(h)
	assert.False(t, ok)
}

func TestChatCloseOwnsEngine(t *testing.T) {
	e := newTestEngine(t, "alice")
	c := New(e, WithEngineOwnership())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.GetUser(testContext(t), "alice")
	assert.ErrorIs(t, err, engine.ErrClosed)
}

func TestStreamCancelAfterFirstMessage(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	stream, err := ch.StreamMessages(ctx)
	require.NoError(t, err)

	present, err := ch.WhoIsPresent(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, present)

	_, err = ch.SendText(testContext(t), "one")
	require.NoError(t, err)
	first := receive(t, stream.C())
	assert.Equal(t, "one", first.Text())

	cancel()
	select {
	case <-stream.Handle().Done():
	case <-time.After(wait):
		t.Fatal("stream handle not closed")
	}
	assert.True(t, stream.Handle().Closed())

	for _, text := range []string{"two", "three"} {
		_, err = ch.SendText(testContext(t), text)
		require.NoError(t, err)
	}
	observed := 1
	for range stream.C() {
		observed++
	}
	assert.Equal(t, 1, observed)

	require.Eventually(t, func() bool {
		ids, err := ch.WhoIsPresent(testContext(t))
		return err == nil && len(ids) == 0
	}, wait, 10*time.Millisecond)
}

func TestMessagesSeq(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")

	go func() {
		time.Sleep(20 * time.Millisecond)
		for _, text := range []string{"a", "b", "c"} {
			_, _ = ch.SendText(context.Background(), text)
		}
	}()

	var texts []string
	for m, err := range ch.Messages(testContext(t)) {
		require.NoError(t, err)
		texts = append(texts, m.Text())
		if len(texts) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestListenerRequiresCallback(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")
	_, err := ch.Connect(nil)
	assert.Error(t, err)
	_, err = c.OnEvent("", nil)
	assert.Error(t, err)
}

func TestClosedWrapperCannotListen(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")
	ch.Close()
	_, err := ch.Connect(func(*Message) {})
	assert.ErrorIs(t, err, bridge.ErrOwnerExpired)
}

func TestCloseWithOpenListener(t *testing.T) {
	c, e := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	other, err := c.GetChannel(ctx, "general")
	require.NoError(t, err)
	defer other.Close()

	got := make(chan *Message, 4)
	_, err = ch.Connect(func(m *Message) { got <- m })
	require.NoError(t, err)
	_, err = other.SendText(ctx, "before close")
	require.NoError(t, err)
	assert.Equal(t, "before close", receive(t, got).Text())

	ch.Close()
	before := e.Outstanding()
	_, err = other.SendText(ctx, "after close")
	require.NoError(t, err)

	// a listener on the open wrapper proves the send was dispatched
	seen := make(chan *Message, 1)
	l, err := other.Connect(func(m *Message) { seen <- m })
	require.NoError(t, err)
	defer l.Close()
	_, err = other.SendText(ctx, "marker")
	require.NoError(t, err)
	assert.Equal(t, "marker", receive(t, seen).Text())

	select {
	case m := <-got:
		t.Fatalf("closed channel wrapper still received %q", m.Text())
	default:
	}
	require.Eventually(t, func() bool {
		ids, err := other.WhoIsPresent(ctx)
		return err == nil && len(ids) == 1
	}, wait, 10*time.Millisecond)
	assert.LessOrEqual(t, e.Outstanding(), before+1)
}

func TestStreamEndsWhenOwnerCloses(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")

	stream, err := ch.StreamMessages(testContext(t))
	require.NoError(t, err)
	ch.Close()

	select {
	case _, open := <-stream.C():
		assert.False(t, open)
	case <-time.After(wait):
		t.Fatal("stream still open after its channel wrapper was closed")
	}
	assert.True(t, stream.Handle().Closed())
}

func TestUserUpdates(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	bob, err := c.CreateUser(ctx, engine.UserData{ID: "bob", Name: "Bob"})
	require.NoError(t, err)

	updates, err := bob.StreamUpdates(ctx)
	require.NoError(t, err)
	defer updates.Close()

	name := "Robert"
	_, err = c.UpdateUser(ctx, "bob", engine.UserUpdate{Name: &name})
	require.NoError(t, err)
	u := receive(t, updates.C())
	assert.Equal(t, "Robert", u.Name())
	assert.Equal(t, "Bob", bob.Name())
}

func TestConversations(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	for _, id := range []string{"bob", "carol"} {
		_, err := c.CreateUser(ctx, engine.UserData{ID: id, Name: id})
		require.NoError(t, err)
	}

	pub, err := c.CreatePublicConversation(ctx, engine.ChannelData{ID: "lobby"})
	require.NoError(t, err)
	assert.Equal(t, engine.ChannelPublic, pub.Type())

	group, err := c.CreateGroupConversation(ctx, engine.ChannelData{ID: "team"}, "bob", "carol")
	require.NoError(t, err)
	assert.Equal(t, engine.ChannelGroup, group.Channel.Type())
	assert.Equal(t, "alice", group.HostMembership.UserID())
	require.Len(t, group.InviteeMemberships, 2)
	members, err := group.Channel.GetMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	direct, err := c.CreateDirectConversation(ctx, "bob", engine.ChannelData{})
	require.NoError(t, err)
	assert.Equal(t, engine.ChannelDirect, direct.Channel.Type())
	assert.Equal(t, "bob", direct.InviteeMembership.UserID())

	again, err := c.CreateDirectConversation(ctx, "bob", engine.ChannelData{})
	require.NoError(t, err)
	assert.Equal(t, direct.Channel.ID(), again.Channel.ID())
}

func TestGroupInviteFailureKeepsChannel(t *testing.T) {
	c, e := newTestChat(t)
	ctx := testContext(t)
	before := e.Outstanding()

	conv, err := c.CreateGroupConversation(ctx, engine.ChannelData{ID: "team"}, "ghost")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	require.NotNil(t, conv)
	require.NotNil(t, conv.Channel)
	require.NotNil(t, conv.HostMembership)
	assert.Empty(t, conv.InviteeMemberships)
	assert.Equal(t, "alice", conv.HostMembership.UserID())

	kept, err := c.GetChannel(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, engine.ChannelGroup, kept.Type())
	kept.Close()

	conv.Close()
	assert.Equal(t, before, e.Outstanding())
}

func TestInviteEventReachesUser(t *testing.T) {
	e := newTestEngine(t, "alice")
	c := New(e)
	ctx := testContext(t)

	events, err := c.StreamEvents(ctx, "")
	require.NoError(t, err)
	defer events.Close()

	// alice invites herself into a second channel to land on her own event channel
	other := newGroup(t, c, "other")
	_, err = other.Invite(ctx, "alice")
	require.NoError(t, err)
	ev := receive(t, events.C())
	assert.Equal(t, engine.EventInvite, ev.Type)
	assert.Equal(t, "other", ev.ChannelID)
}

func TestMuteUser(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	_, err := c.CreateUser(ctx, engine.UserData{ID: "bob"})
	require.NoError(t, err)

	muted, err := c.MuteUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, muted)

	me, err := c.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, me.MutedUsers())

	muted, err = c.UnmuteUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, muted)
}

func TestRestrictionsBlockJoin(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	require.NoError(t, c.SetRestrictions(ctx, engine.Restriction{UserID: "alice", ChannelID: "general", Ban: true, Reason: "spam"}))
	_, err := ch.Join(ctx, nil)
	assert.True(t, errors.Is(err, engine.ErrUnauthorized))
}

func TestUserActive(t *testing.T) {
	c, _ := newTestChat(t, WithActivityInterval(time.Minute))
	u := &User{wrapper: wrapper{chat: c}}
	assert.False(t, u.Active())
	u.data.LastActive = time.Now().Add(-30 * time.Second)
	assert.True(t, u.Active())
	u.data.LastActive = time.Now().Add(-2 * time.Minute)
	assert.False(t, u.Active())
}

func TestPresence(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	updates, err := ch.StreamPresence(ctx)
	require.NoError(t, err)
	defer updates.Close()

	closer, err := ch.Connect(func(*Message) {})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, receive(t, updates.C()))

	on, err := c.CurrentUser().IsPresentOn(ctx, "general")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, closer.Close())
	assert.Empty(t, receive(t, updates.C()))
}
