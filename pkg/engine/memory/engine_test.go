package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/auth"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/pubsub"
	"github.com/Goden-Gun/chat-bindings/pkg/push"
)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Chat.UserID == "" {
		opts.Chat.UserID = "alice"
	}
	if opts.Chat.RateLimitPerChannel == nil {
		opts.Chat.RateLimitPerChannel = map[string]time.Duration{"group": 0, "public": 0}
	}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func await[T any](t *testing.T, f bridge.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := bridge.Await(ctx, f)
	require.NoError(t, err)
	return v
}

func awaitErr[T any](t *testing.T, f bridge.Future[T]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := bridge.Await(ctx, f)
	return err
}

type recorder[T any] struct {
	mu   sync.Mutex
	seen []T
}

func (r *recorder[T]) add(_ association.Handle, v T) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.seen...)
}

func TestNewRequiresUserID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestUsers(t *testing.T) {
	e := newEngine(t, Options{})
	assert.Equal(t, "alice", e.CurrentUser().ID)

	bob := await(t, e.CreateUser(engine.UserData{ID: "bob", Name: "Bob"}))
	assert.NotZero(t, bob.Handle)
	assert.ErrorIs(t, awaitErr(t, e.CreateUser(engine.UserData{ID: "bob"})), engine.ErrAlreadyExists)

	name := "Robert"
	updated := await(t, e.UpdateUser("bob", engine.UserUpdate{Name: &name}))
	assert.Equal(t, "Robert", updated.Name)

	users := await(t, e.GetUsers(engine.Filter{Prefix: "ro"}))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)

	soft := await(t, e.DeleteUser("bob", true))
	assert.Equal(t, "deleted", soft.Status)
	await(t, e.DeleteUser("bob", false))
	assert.ErrorIs(t, awaitErr(t, e.GetUser("bob")), engine.ErrNotFound)
	assert.ErrorIs(t, awaitErr(t, e.DeleteUser("alice", false)), engine.ErrInvalidArgument)
}

func TestSendAndHistory(t *testing.T) {
	e := newEngine(t, Options{})
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "general", Name: "General"}))
	assert.Equal(t, engine.ChannelPublic, ch.Type)

	got := &recorder[engine.MessageData]{}
	sub, err := e.ListenMessages(ch.Handle, "general", got.add)
	require.NoError(t, err)
	defer sub.Close()

	var tts []string
	for _, text := range []string{"one", "two", "three"} {
		tts = append(tts, await(t, e.SendText("general", text, engine.SendOptions{})))
	}
	assert.IsIncreasing(t, tts)
	require.Eventually(t, func() bool { return len(got.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	for i, m := range got.snapshot() {
		assert.Equal(t, tts[i], m.Timetoken)
		assert.NotZero(t, m.Handle)
	}

	history := await(t, e.GetHistory("general", engine.HistoryQuery{Count: 2}))
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Text)
	assert.Equal(t, "three", history[1].Text)

	older := await(t, e.GetHistory("general", engine.HistoryQuery{Start: tts[1]}))
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Text)

	assert.ErrorIs(t, awaitErr(t, e.SendText("general", "  ", engine.SendOptions{})), engine.ErrInvalidArgument)
	assert.ErrorIs(t, awaitErr(t, e.SendText("nowhere", "hi", engine.SendOptions{})), engine.ErrNotFound)
}

func TestMessageLifecycle(t *testing.T) {
	e := newEngine(t, Options{})
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))
	tt := await(t, e.SendText("general", "hello", engine.SendOptions{}))

	updates := &recorder[engine.MessageData]{}
	sub, err := e.ListenMessageUpdates(ch.Handle, "general", tt, updates.add)
	require.NoError(t, err)
	defer sub.Close()

	edited := await(t, e.EditText("general", tt, "hello!"))
	assert.Equal(t, "hello!", edited.EditedText)

	reacted := await(t, e.ToggleReaction("general", tt, "+1"))
	assert.Equal(t, []string{"alice"}, reacted.Reactions["+1"])
	reacted = await(t, e.ToggleReaction("general", tt, "+1"))
	assert.NotContains(t, reacted.Reactions, "+1")

	deleted := await(t, e.DeleteMessage("general", tt, true))
	assert.True(t, deleted.Deleted)
	restored := await(t, e.RestoreMessage("general", tt))
	assert.False(t, restored.Deleted)
	assert.ErrorIs(t, awaitErr(t, e.RestoreMessage("general", tt)), engine.ErrInvalidArgument)

	pinned := await(t, e.PinMessage("general", tt))
	assert.Equal(t, tt, pinned.PinnedMessage)

	await(t, e.DeleteMessage("general", tt, false))
	assert.ErrorIs(t, awaitErr(t, e.GetMessage("general", tt)), engine.ErrNotFound)
	channel := await(t, e.GetChannel("general"))
	assert.Empty(t, channel.PinnedMessage)

	require.Eventually(t, func() bool { return len(updates.snapshot()) == 6 }, time.Second, 5*time.Millisecond)
}

func TestThreads(t *testing.T) {
	e := newEngine(t, Options{})
	await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))
	tt := await(t, e.SendText("general", "root", engine.SendOptions{}))

	thread := await(t, e.CreateThread("general", tt))
	assert.True(t, thread.IsThread())
	assert.Equal(t, "general", thread.ParentChannelID)
	assert.Equal(t, tt, thread.ParentMessage)
	assert.ErrorIs(t, awaitErr(t, e.CreateThread("general", tt)), engine.ErrAlreadyExists)

	reply := await(t, e.SendText(thread.ID, "reply", engine.SendOptions{}))
	msg := await(t, e.GetMessage(thread.ID, reply))
	assert.Equal(t, "general", msg.ThreadRootChannel)
	assert.ErrorIs(t, awaitErr(t, e.CreateThread(thread.ID, reply)), engine.ErrInvalidArgument)

	again := await(t, e.GetThread("general", tt))
	assert.Equal(t, thread.ID, again.ID)

	channels := await(t, e.GetChannels(engine.Filter{}))
	require.Len(t, channels, 1)

	root := await(t, e.RemoveThread("general", tt))
	assert.False(t, root.HasThread)
	assert.ErrorIs(t, awaitErr(t, e.GetThread("general", tt)), engine.ErrNotFound)
	assert.ErrorIs(t, awaitErr(t, e.GetChannel(thread.ID)), engine.ErrNotFound)
}

func TestMembershipAndUnread(t *testing.T) {
	e := newEngine(t, Options{})
	await(t, e.CreateUser(engine.UserData{ID: "bob"}))
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "team", Type: engine.ChannelGroup}))

	members := await(t, e.GetMembers("team"))
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].UserID)

	invited := await(t, e.Invite("team", "bob"))
	assert.Equal(t, "bob", invited.UserID)
	assert.Len(t, await(t, e.GetMembers("team")), 2)

	events := &recorder[engine.EventData]{}
	sub, err := e.ListenEvents(ch.Handle, "team", events.add)
	require.NoError(t, err)
	defer sub.Close()

	first := await(t, e.SendText("team", "1", engine.SendOptions{}))
	await(t, e.SendText("team", "2", engine.SendOptions{}))
	assert.Equal(t, 2, await(t, e.UnreadCount("team", "bob")))

	m := await(t, e.SetLastReadMessage("team", "bob", first))
	assert.Equal(t, first, m.LastReadMessage)
	assert.Equal(t, 1, await(t, e.UnreadCount("team", "bob")))
	require.Eventually(t, func() bool {
		seen := events.snapshot()
		return len(seen) == 1 && seen[0].Type == engine.EventReceipt
	}, time.Second, 5*time.Millisecond)

	updated := await(t, e.UpdateMembership("team", "bob", map[string]any{"role": "admin"}))
	assert.Equal(t, "admin", updated.Custom["role"])

	memberships := await(t, e.GetMemberships("bob"))
	require.Len(t, memberships, 1)

	await(t, e.Leave("team"))
	assert.ErrorIs(t, awaitErr(t, e.UnreadCount("team", "alice")), engine.ErrNotFound)

	pub := await(t, e.CreateChannel(engine.ChannelData{ID: "lobby"}))
	assert.ErrorIs(t, awaitErr(t, e.Invite(pub.ID, "bob")), engine.ErrInvalidArgument)
}

func TestEventsAcrossEngines(t *testing.T) {
	transport := pubsub.NewLocal()
	alice := newEngine(t, Options{Transport: transport})
	bob := newEngine(t, Options{Chat: config.ChatConfig{UserID: "bob"}, Transport: transport})

	inbox := &recorder[engine.EventData]{}
	sub, err := bob.ListenEvents(bob.CurrentUser().Handle, "", inbox.add)
	require.NoError(t, err)
	defer sub.Close()

	await(t, alice.CreateUser(engine.UserData{ID: "bob"}))
	dc := await(t, alice.CreateDirectConversation("bob", engine.ChannelData{}))
	assert.Equal(t, engine.ChannelDirect, dc.Channel.Type)
	assert.Equal(t, "bob", dc.InviteeMembership.UserID)
	assert.Equal(t, directChannelID("bob", "alice"), dc.Channel.ID)

	await(t, alice.SetRestrictions(engine.Restriction{UserID: "bob", ChannelID: dc.Channel.ID, Mute: true, Reason: "spam"}))

	require.Eventually(t, func() bool { return len(inbox.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	seen := inbox.snapshot()
	assert.Equal(t, engine.EventInvite, seen[0].Type)
	assert.Equal(t, engine.EventModerate, seen[1].Type)
	assert.Equal(t, "muted", seen[1].Payload["restriction"])

	assert.ErrorIs(t, awaitErr(t, alice.CreateDirectConversation("alice", engine.ChannelData{})), engine.ErrInvalidArgument)
}

func TestBanBlocksJoinAndSend(t *testing.T) {
	e := newEngine(t, Options{})
	await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))
	await(t, e.SetRestrictions(engine.Restriction{UserID: "alice", ChannelID: "general", Ban: true}))

	assert.ErrorIs(t, awaitErr(t, e.Join("general", nil)), engine.ErrUnauthorized)
	assert.ErrorIs(t, awaitErr(t, e.SendText("general", "hi", engine.SendOptions{})), engine.ErrUnauthorized)

	await(t, e.SetRestrictions(engine.Restriction{UserID: "alice", ChannelID: "general"}))
	joined := await(t, e.Join("general", map[string]any{"seen": true}))
	assert.Equal(t, true, joined.Custom["seen"])
}

func TestMuteFiltersAndSyncs(t *testing.T) {
	transport := pubsub.NewLocal()
	alice := newEngine(t, Options{Transport: transport, Chat: config.ChatConfig{UserID: "alice", SyncMutedUsers: true}})
	bob := newEngine(t, Options{Transport: transport, Chat: config.ChatConfig{UserID: "bob"}})
	ch := await(t, alice.CreateChannel(engine.ChannelData{ID: "general"}))
	await(t, bob.CreateChannel(engine.ChannelData{ID: "general"}))

	got := &recorder[engine.MessageData]{}
	sub, err := alice.ListenMessages(ch.Handle, "general", got.add)
	require.NoError(t, err)
	defer sub.Close()

	muted := await(t, alice.MuteUser("bob"))
	assert.Equal(t, []string{"bob"}, muted)
	assert.Equal(t, []string{"bob"}, alice.CurrentUser().Custom[engine.MutedUsersKey])

	await(t, bob.SendText("general", "ignored", engine.SendOptions{}))
	await(t, alice.SendText("general", "mine", engine.SendOptions{}))
	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "mine", got.snapshot()[0].Text)

	assert.Empty(t, await(t, alice.UnmuteUser("bob")))
	assert.ErrorIs(t, awaitErr(t, alice.MuteUser("alice")), engine.ErrInvalidArgument)
}

func TestTypingIndicator(t *testing.T) {
	e := newEngine(t, Options{Chat: config.ChatConfig{UserID: "alice", TypingTimeout: 1}})
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "team", Type: engine.ChannelGroup}))

	typing := &recorder[[]string]{}
	sub, err := e.ListenTyping(ch.Handle, "team", typing.add)
	require.NoError(t, err)
	defer sub.Close()

	await(t, e.StartTyping("team"))
	require.Eventually(t, func() bool { return len(typing.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, typing.snapshot()[0])

	await(t, e.StopTyping("team"))
	require.Eventually(t, func() bool { return len(typing.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, typing.snapshot()[1])

	await(t, e.StartTyping("team"))
	require.Eventually(t, func() bool { return len(typing.snapshot()) == 4 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, typing.snapshot()[3])

	await(t, e.CreateChannel(engine.ChannelData{ID: "lobby"}))
	assert.ErrorIs(t, awaitErr(t, e.StartTyping("lobby")), engine.ErrInvalidArgument)
}

func TestPresence(t *testing.T) {
	e := newEngine(t, Options{})
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))

	occupants := &recorder[[]string]{}
	psub, err := e.ListenPresence(ch.Handle, "general", occupants.add)
	require.NoError(t, err)
	defer psub.Close()

	msub, err := e.ListenMessages(ch.Handle, "general", func(association.Handle, engine.MessageData) {})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, await(t, e.WhoIsPresent("general")))
	assert.Equal(t, []string{"general"}, await(t, e.WherePresent("alice")))

	require.NoError(t, msub.Close())
	require.NoError(t, msub.Close())
	assert.Empty(t, await(t, e.WhoIsPresent("general")))
	require.Eventually(t, func() bool { return len(occupants.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestRateLimitQueuesThenRefuses(t *testing.T) {
	e := newEngine(t, Options{Chat: config.ChatConfig{
		UserID:              "alice",
		RateLimitPerChannel: map[string]time.Duration{"public": 40 * time.Millisecond},
	}})
	await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))

	start := time.Now()
	await(t, e.SendText("general", "1", engine.SendOptions{}))
	await(t, e.SendText("general", "2", engine.SendOptions{}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	var mu sync.Mutex
	var errs []error
	for i := 0; i < 4; i++ {
		bridge.Complete(e.SendText("general", "burst", engine.SendOptions{}), func(_ string, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 4
	}, 5*time.Second, 10*time.Millisecond)
	limited := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, engine.ErrRateLimited)
			limited++
		}
	}
	assert.GreaterOrEqual(t, limited, 1)
}

func TestAuthKeyGrants(t *testing.T) {
	authCfg := auth.Config{Secret: "s3cret"}
	tok, err := auth.Issue("alice", []string{"support-*"}, authCfg)
	require.NoError(t, err)

	e := newEngine(t, Options{Auth: authCfg, Chat: config.ChatConfig{UserID: "alice", AuthKey: tok.Value}})
	assert.ErrorIs(t, awaitErr(t, e.CreateChannel(engine.ChannelData{ID: "general"})), engine.ErrUnauthorized)
	await(t, e.CreateChannel(engine.ChannelData{ID: "support-1"}))
	await(t, e.SendText("support-1", "help", engine.SendOptions{}))

	_, err = New(context.Background(), Options{Auth: authCfg, Chat: config.ChatConfig{UserID: "bob", AuthKey: tok.Value}})
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
	_, err = New(context.Background(), Options{Auth: authCfg, AuthRequired: true, Chat: config.ChatConfig{UserID: "alice"}})
	assert.ErrorIs(t, err, engine.ErrUnauthorized)
}

type pushRecorder struct {
	mu sync.Mutex
	ns []push.Notification
}

func (p *pushRecorder) Deliver(_ context.Context, n push.Notification) error {
	p.mu.Lock()
	p.ns = append(p.ns, n)
	p.mu.Unlock()
	return nil
}

func (p *pushRecorder) Close() error { return nil }

func TestPushOnSend(t *testing.T) {
	gw := &pushRecorder{}
	e := newEngine(t, Options{Push: gw, Chat: config.ChatConfig{
		UserID:            "alice",
		PushNotifications: config.PushConfig{SendPushes: true},
	}})
	await(t, e.CreateUser(engine.UserData{ID: "bob"}))
	await(t, e.CreateChannel(engine.ChannelData{ID: "team", Name: "Team", Type: engine.ChannelGroup}))
	await(t, e.Invite("team", "bob"))
	tt := await(t, e.SendText("team", "standup", engine.SendOptions{}))

	require.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.ns) == 1
	}, time.Second, 5*time.Millisecond)
	gw.mu.Lock()
	n := gw.ns[0]
	gw.mu.Unlock()
	assert.Equal(t, []string{"bob"}, n.Recipients)
	assert.Equal(t, tt, n.Timetoken)
	assert.Equal(t, "Team", n.ChannelName)
}

func TestMentionsEmitEvents(t *testing.T) {
	transport := pubsub.NewLocal()
	alice := newEngine(t, Options{Transport: transport})
	bob := newEngine(t, Options{Transport: transport, Chat: config.ChatConfig{UserID: "bob"}})

	inbox := &recorder[engine.EventData]{}
	sub, err := bob.ListenEvents(bob.CurrentUser().Handle, "", inbox.add)
	require.NoError(t, err)
	defer sub.Close()

	await(t, alice.CreateChannel(engine.ChannelData{ID: "general"}))
	await(t, alice.SendText("general", "hi @bob", engine.SendOptions{
		Mentions: map[int]engine.MentionedUser{3: {ID: "bob", Name: "bob"}},
	}))
	require.Eventually(t, func() bool { return len(inbox.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, engine.EventMention, inbox.snapshot()[0].Type)
}

func TestHandlesAndClose(t *testing.T) {
	e, err := New(context.Background(), Options{Chat: config.ChatConfig{UserID: "alice"}})
	require.NoError(t, err)

	u := e.CurrentUser()
	assert.Equal(t, 1, e.Outstanding())
	e.Release(u.Handle)
	assert.Zero(t, e.Outstanding())

	_, err = e.ListenEvents(u.Handle, "", func(association.Handle, engine.EventData) {})
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.ErrorIs(t, awaitErr(t, e.GetUser("alice")), engine.ErrClosed)
}

func TestTTLExpiresHistory(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	e := newEngine(t, Options{Now: clock})
	await(t, e.CreateChannel(engine.ChannelData{ID: "general"}))
	tt := await(t, e.SendText("general", "soon gone", engine.SendOptions{TTL: time.Minute}))
	await(t, e.SendText("general", "ephemeral", engine.SendOptions{SkipHistory: true}))
	require.Len(t, await(t, e.GetHistory("general", engine.HistoryQuery{})), 1)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	assert.Empty(t, await(t, e.GetHistory("general", engine.HistoryQuery{})))
	assert.ErrorIs(t, awaitErr(t, e.GetMessage("general", tt)), engine.ErrNotFound)
}

func TestDispatchNarrowsResultShape(t *testing.T) {
	e := newEngine(t, Options{})
	f := bridge.Typed[engine.UserData](dispatch(e, func(*txn) (any, error) { return "not a user", nil }))
	err := awaitErr(t, f)
	assert.ErrorIs(t, err, bridge.ErrUnexpectedResult)

	var shape *bridge.UnexpectedResultError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "string", shape.Got)
}

func TestUserAndChannelUpdateListeners(t *testing.T) {
	e := newEngine(t, Options{})
	bob := await(t, e.CreateUser(engine.UserData{ID: "bob"}))
	ch := await(t, e.CreateChannel(engine.ChannelData{ID: "general", Type: engine.ChannelGroup}))

	userUpdates := &recorder[engine.UserData]{}
	us, err := e.ListenUserUpdates(bob.Handle, "bob", userUpdates.add)
	require.NoError(t, err)
	defer us.Close()
	channelUpdates := &recorder[engine.ChannelData]{}
	cs, err := e.ListenChannelUpdates(ch.Handle, "general", channelUpdates.add)
	require.NoError(t, err)
	defer cs.Close()

	name := "Robert"
	await(t, e.UpdateUser("bob", engine.UserUpdate{Name: &name}))
	require.Eventually(t, func() bool { return len(userUpdates.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Robert", userUpdates.snapshot()[0].Name)
	assert.NotZero(t, userUpdates.snapshot()[0].Handle)

	msg := await(t, e.SendText("general", "hello", engine.SendOptions{}))
	await(t, e.PinMessage("general", msg))
	await(t, e.UnpinMessage("general"))
	require.Eventually(t, func() bool { return len(channelUpdates.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	seen := channelUpdates.snapshot()
	assert.Equal(t, msg, seen[0].PinnedMessage)
	assert.Empty(t, seen[1].PinnedMessage)

	_, err = e.ListenUserUpdates(bob.Handle, "nobody", userUpdates.add)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}
