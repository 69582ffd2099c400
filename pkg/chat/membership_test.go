package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

func TestMembershipReadMarkers(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")

	m, err := ch.Join(ctx, map[string]any{"role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", m.Custom()["role"])

	first := sendAndFetch(t, ch, "one")
	sendAndFetch(t, ch, "two")

	n, err := m.GetUnreadMessagesCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	read, err := m.SetLastReadMessage(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.Timetoken(), read.LastReadMessageTimetoken())
	n, err = read.GetUnreadMessagesCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := c.GetUnreadMessagesCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "general", counts[0].Membership.ChannelID())
	assert.Equal(t, 1, counts[0].Count)

	marked, err := c.MarkAllMessagesAsRead(ctx)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	n, err = marked[0].GetUnreadMessagesCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMembershipUpdates(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	m, err := ch.Join(ctx, nil)
	require.NoError(t, err)

	updates, err := m.StreamUpdates(ctx)
	require.NoError(t, err)
	defer updates.Close()

	_, err = m.Update(ctx, map[string]any{"muted": true})
	require.NoError(t, err)
	got := receive(t, updates.C())
	assert.Equal(t, true, got.Custom()["muted"])

	own, err := got.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", own.ID())
	channel, err := got.Channel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "general", channel.ID())
}

func TestReceiptEvent(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	m, err := ch.Join(ctx, nil)
	require.NoError(t, err)
	msg := sendAndFetch(t, ch, "hi")

	events, err := ch.StreamEvents(ctx)
	require.NoError(t, err)
	defer events.Close()

	_, err = m.SetLastReadMessage(ctx, msg)
	require.NoError(t, err)
	ev := receive(t, events.C())
	assert.Equal(t, engine.EventReceipt, ev.Type)
	assert.Equal(t, msg.Timetoken(), ev.Payload["messageTimetoken"])
}

func TestLeave(t *testing.T) {
	c, _ := newTestChat(t)
	ctx := testContext(t)
	ch := newGroup(t, c, "general")
	_, err := ch.Join(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, ch.Leave(ctx))

	ms, err := c.CurrentUser().GetMemberships(ctx)
	require.NoError(t, err)
	assert.Empty(t, ms)
}
