package memory

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

// timetokens issues strictly increasing 17 digit timetokens (100ns units),
// so string order matches publish order.
type timetokens struct {
	last int64
}

func (t *timetokens) next(now time.Time) string {
	v := now.UnixNano() / 100
	if v <= t.last {
		v = t.last + 1
	}
	t.last = v
	return fmt.Sprintf("%017d", v)
}

func cloneUser(u engine.UserData) engine.UserData {
	u.Custom = maps.Clone(u.Custom)
	return u
}

func cloneChannel(c engine.ChannelData) engine.ChannelData {
	c.Custom = maps.Clone(c.Custom)
	return c
}

func cloneMembership(m engine.MembershipData) engine.MembershipData {
	m.Custom = maps.Clone(m.Custom)
	return m
}

func cloneMessage(m engine.MessageData) engine.MessageData {
	m.Meta = maps.Clone(m.Meta)
	if m.Reactions != nil {
		reactions := make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			reactions[k] = slices.Clone(v)
		}
		m.Reactions = reactions
	}
	m.Mentions = maps.Clone(m.Mentions)
	m.ReferencedChannels = maps.Clone(m.ReferencedChannels)
	if m.Quoted != nil {
		q := *m.Quoted
		m.Quoted = &q
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
