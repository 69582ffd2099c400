package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

func draftChat(t *testing.T) (*Chat, *Channel) {
	t.Helper()
	c, _ := newTestChat(t)
	ctx := testContext(t)
	for _, u := range []engine.UserData{{ID: "bob", Name: "Bob"}, {ID: "bobby", Name: "Bobby"}, {ID: "carol", Name: "Carol"}} {
		_, err := c.CreateUser(ctx, u)
		require.NoError(t, err)
	}
	return c, newGroup(t, c, "general")
}

func suggestionIDs(ss []Suggestion) []string {
	var ids []string
	for _, s := range ss {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestDraftMentionSuggestions(t *testing.T) {
	_, ch := draftChat(t)
	ctx := testContext(t)
	d := ch.CreateMessageDraft()

	got, err := d.Update(ctx, "hi @bo")
	require.NoError(t, err)
	assert.Empty(t, got, "too short to suggest")

	got, err = d.Update(ctx, "hi @bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "bobby"}, suggestionIDs(got))

	var bob Suggestion
	for _, s := range got {
		if s.ID == "bob" {
			bob = s
		}
	}
	require.NoError(t, d.InsertSuggestion(bob))
	assert.Equal(t, "hi @Bob", d.Text())
	assert.Equal(t, map[int]engine.MentionedUser{3: {ID: "bob", Name: "Bob"}}, d.Mentions())

	got, err = d.Update(ctx, "hi @Bob how are you")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, d.Mentions(), 1)

	_, err = d.Update(ctx, "hi @Bo how are you")
	require.NoError(t, err)
	assert.Empty(t, d.Mentions(), "edit inside the mention drops it")
}

func TestDraftShiftsLaterMentions(t *testing.T) {
	_, ch := draftChat(t)
	ctx := testContext(t)
	d := ch.CreateMessageDraft()

	got, err := d.Update(ctx, "@bob @car")
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, suggestionIDs(got))
	require.NoError(t, d.InsertSuggestion(got[0]))
	assert.Equal(t, "@bob @Carol", d.Text())

	got, err = d.Update(ctx, d.Text())
	require.NoError(t, err)
	var bobby Suggestion
	for _, s := range got {
		if s.ID == "bobby" {
			bobby = s
		}
	}
	require.Equal(t, "bobby", bobby.ID)
	require.NoError(t, d.InsertSuggestion(bobby))

	assert.Equal(t, "@Bobby @Carol", d.Text())
	assert.Equal(t, map[int]engine.MentionedUser{
		0: {ID: "bobby", Name: "Bobby"},
		7: {ID: "carol", Name: "Carol"},
	}, d.Mentions())
}

func TestDraftStaleSuggestion(t *testing.T) {
	_, ch := draftChat(t)
	ctx := testContext(t)
	d := ch.CreateMessageDraft()
	got, err := d.Update(ctx, "@car")
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, err = d.Update(ctx, "never mind")
	require.NoError(t, err)
	assert.Error(t, d.InsertSuggestion(got[0]))
}

func TestDraftChannelReference(t *testing.T) {
	c, ch := draftChat(t)
	ctx := testContext(t)
	_, err := c.CreateChannel(ctx, engine.ChannelData{ID: "random", Name: "Random", Type: engine.ChannelGroup})
	require.NoError(t, err)

	d := ch.CreateMessageDraft()
	got, err := d.Update(ctx, "see #ran")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SuggestChannel, got[0].Kind)
	require.NoError(t, d.InsertSuggestion(got[0]))
	assert.Equal(t, "see #Random", d.Text())
	assert.Equal(t, map[int]engine.ReferencedChannel{4: {ID: "random", Name: "Random"}}, d.ReferencedChannels())
}

func TestDraftAddMention(t *testing.T) {
	_, ch := draftChat(t)
	d := ch.CreateMessageDraft()
	_, err := d.Update(testContext(t), "ping @Carol")
	require.NoError(t, err)

	assert.ErrorIs(t, d.AddMention(0, engine.MentionedUser{ID: "carol", Name: "Carol"}), ErrMentionOutOfRange)
	require.NoError(t, d.AddMention(5, engine.MentionedUser{ID: "carol", Name: "Carol"}))
	assert.Len(t, d.Mentions(), 1)
	d.RemoveMention(5)
	assert.Empty(t, d.Mentions())
}

func TestDraftSend(t *testing.T) {
	c, ch := draftChat(t)
	ctx := testContext(t)
	quoted := sendAndFetch(t, ch, "earlier")

	d := ch.CreateMessageDraft()
	_, err := d.Send(ctx)
	assert.Error(t, err, "empty draft")

	got, err := d.Update(ctx, "thanks @car")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, d.InsertSuggestion(got[0]))
	require.NoError(t, d.QuoteMessage(quoted))

	other := newGroup(t, c, "other")
	foreign := sendAndFetch(t, other, "elsewhere")
	assert.Error(t, d.QuoteMessage(foreign))

	tt, err := d.Send(ctx)
	require.NoError(t, err)
	sent, err := ch.GetMessage(ctx, tt)
	require.NoError(t, err)
	assert.Equal(t, "thanks @Carol", sent.Text())
	assert.Equal(t, map[int]engine.MentionedUser{7: {ID: "carol", Name: "Carol"}}, sent.Mentions())
	require.NotNil(t, sent.Quoted())
	assert.Equal(t, quoted.Timetoken(), sent.Quoted().Timetoken)
}
