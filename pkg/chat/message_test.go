package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

func sendAndFetch(t *testing.T, ch *Channel, text string, opts ...SendOption) *Message {
	t.Helper()
	ctx := testContext(t)
	tt, err := ch.SendText(ctx, text, opts...)
	require.NoError(t, err)
	m, err := ch.GetMessage(ctx, tt)
	require.NoError(t, err)
	return m
}

func TestMessageEdits(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	msg := sendAndFetch(t, ch, "helo", WithMeta(map[string]any{"lang": "en"}))
	assert.Equal(t, "alice", msg.UserID())
	assert.Equal(t, "en", msg.Meta()["lang"])

	edited, err := msg.EditText(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Text())
	assert.Equal(t, "helo", edited.OriginalText())

	reacted, err := edited.ToggleReaction(ctx, "👍")
	require.NoError(t, err)
	assert.True(t, reacted.HasUserReaction("👍"))
	assert.Equal(t, map[string][]string{"👍": {"alice"}}, reacted.Reactions())
	unreacted, err := reacted.ToggleReaction(ctx, "👍")
	require.NoError(t, err)
	assert.False(t, unreacted.HasUserReaction("👍"))

	deleted, err := msg.Delete(ctx, true)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())
	restored, err := deleted.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored.Deleted())
	_, err = restored.Restore(ctx)
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)

	_, err = msg.Delete(ctx, false)
	require.NoError(t, err)
	_, err = ch.GetMessage(ctx, msg.Timetoken())
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestMessageUpdateStream(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	msg := sendAndFetch(t, ch, "draft")

	updates, err := msg.StreamUpdates(ctx)
	require.NoError(t, err)
	defer updates.Close()

	_, err = msg.EditText(ctx, "final")
	require.NoError(t, err)
	got := receive(t, updates.C())
	assert.Equal(t, "final", got.Text())
	assert.Equal(t, msg.Timetoken(), got.Timetoken())
	assert.NotEqual(t, msg.handle, got.handle)
}

func TestPinnedMessage(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	none, err := ch.GetPinnedMessage(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	msg := sendAndFetch(t, ch, "rules")
	pinned, err := msg.Pin(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.Timetoken(), pinned.PinnedMessageTimetoken())
	got, err := pinned.GetPinnedMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rules", got.Text())

	unpinned, err := pinned.UnpinMessage(ctx)
	require.NoError(t, err)
	assert.Empty(t, unpinned.PinnedMessageTimetoken())
}

func TestThreads(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	root := sendAndFetch(t, ch, "question")

	thread, err := root.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "general", thread.ParentChannelID())
	assert.Equal(t, root.Timetoken(), thread.ParentMessageTimetoken())
	_, ok := threads.Find(thread.handle)
	assert.True(t, ok)

	_, err = root.CreateThread(ctx)
	assert.ErrorIs(t, err, engine.ErrAlreadyExists)

	reply := sendAndFetch(t, thread.Channel, "answer")
	_, err = reply.CreateThread(ctx)
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)

	parent, err := thread.ParentMessage(ctx)
	require.NoError(t, err)
	assert.True(t, parent.HasThread())

	again, err := parent.GetThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, thread.ID(), again.ID())

	updates, err := thread.StreamUpdates(ctx)
	require.NoError(t, err)
	_, err = reply.Pin(ctx)
	require.NoError(t, err)
	updated := receive(t, updates.C())
	assert.Equal(t, reply.Timetoken(), updated.PinnedMessageTimetoken())
	assert.Equal(t, "general", updated.ParentChannelID())

	thread.Close()
	_, open := <-updates.C()
	assert.False(t, open)
	_, ok = threads.Find(thread.handle)
	assert.False(t, ok)
	_, ok = channels.Find(thread.handle)
	assert.False(t, ok)

	cleared, err := parent.RemoveThread(ctx)
	require.NoError(t, err)
	assert.False(t, cleared.HasThread())
	_, err = cleared.GetThread(ctx)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestForward(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	general := newGroup(t, c, "general")
	random := newGroup(t, c, "random")
	msg := sendAndFetch(t, general, "look")

	tt, err := msg.Forward(ctx, "random")
	require.NoError(t, err)
	fwd, err := random.GetMessage(ctx, tt)
	require.NoError(t, err)
	assert.Equal(t, "look", fwd.Text())
	assert.Equal(t, "alice", fwd.Meta()[MetaOriginalPublisher])
	assert.Equal(t, "general", fwd.Meta()[MetaOriginalChannelID])

	_, err = msg.Forward(ctx, "general")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	msg := sendAndFetch(t, ch, "spam spam")

	reports, err := c.StreamEvents(ctx, ModerationChannelPrefix+"general")
	require.NoError(t, err)
	defer reports.Close()

	_, err = msg.Report(ctx, "spam")
	require.NoError(t, err)
	ev := receive(t, reports.C())
	assert.Equal(t, engine.EventReport, ev.Type)

	var r Report
	require.NoError(t, ev.Decode(&r))
	assert.Equal(t, Report{
		Reason:                   "spam",
		Text:                     "spam spam",
		ReportedUserID:           "alice",
		ReportedMessageChannelID: "general",
		ReportedMessageTimetoken: msg.Timetoken(),
	}, r)
}

func TestChannelEvents(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	events, err := ch.StreamEvents(ctx)
	require.NoError(t, err)
	defer events.Close()

	_, err = ch.EmitEvent(ctx, map[string]any{"kind": "poll"})
	require.NoError(t, err)
	ev := receive(t, events.C())
	assert.Equal(t, engine.EventCustom, ev.Type)
	assert.Equal(t, "poll", ev.Payload["kind"])
}

func TestPayloadTransform(t *testing.T) {
	c, _ := newTestChat(t, WithPayloadTransform(PayloadTransform{
		Send: func(text string, opts *engine.SendOptions) string {
			opts.Meta = map[string]any{"shouted": true}
			return strings.ToUpper(text)
		},
		Receive: func(d engine.MessageData) engine.MessageData {
			d.Text = strings.TrimSpace(d.Text) + "!"
			return d
		},
	}))
	ch := newGroup(t, c, "general")
	msg := sendAndFetch(t, ch, "hi")
	assert.Equal(t, "HI!", msg.Text())
	assert.Equal(t, true, msg.Meta()["shouted"])
	_, ok := messages.Find(msg.handle)
	assert.True(t, ok)
}

func TestHistory(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	var tts []string
	for _, text := range []string{"a", "b", "c", "d"} {
		tt, err := ch.SendText(ctx, text)
		require.NoError(t, err)
		tts = append(tts, tt)
	}
	_, err := ch.SendText(ctx, "ephemeral", WithoutHistory())
	require.NoError(t, err)

	last, err := ch.GetHistory(ctx, engine.HistoryQuery{Count: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "c", last[0].Text())
	assert.Equal(t, "d", last[1].Text())

	older, err := ch.GetHistory(ctx, engine.HistoryQuery{Start: tts[2]})
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "a", older[0].Text())
}

func TestWithQuote(t *testing.T) {
	c, _ := newTestChat(t)
	ch := newGroup(t, c, "general")
	orig := sendAndFetch(t, ch, "original")
	reply := sendAndFetch(t, ch, "reply", WithQuote(orig))
	require.NotNil(t, reply.Quoted())
	assert.Equal(t, orig.Timetoken(), reply.Quoted().Timetoken)
	assert.Equal(t, "original", reply.Quoted().Text)
}

func TestChannelUpdates(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	updates, err := ch.StreamUpdates(ctx)
	require.NoError(t, err)
	defer updates.Close()

	desc := "announcements"
	_, err = ch.Update(ctx, engine.ChannelUpdate{Description: &desc})
	require.NoError(t, err)
	got := receive(t, updates.C())
	assert.Equal(t, "announcements", got.Description())
	assert.Empty(t, ch.Description())
}
