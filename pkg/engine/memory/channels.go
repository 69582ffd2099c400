package memory

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
)

func (e *Engine) channelOut(c *engine.ChannelData) engine.ChannelData {
	out := cloneChannel(*c)
	out.Handle = e.issue()
	return out
}

func (e *Engine) channelLocked(id string) (*engine.ChannelData, error) {
	c, ok := e.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q", engine.ErrNotFound, id)
	}
	return c, nil
}

func (e *Engine) CreateChannel(c engine.ChannelData) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Type == "" {
			c.Type = engine.ChannelPublic
		}
		if err := e.canAccess(c.ID); err != nil {
			return engine.ChannelData{}, err
		}
		rec, err := e.createChannelLocked(c)
		if err != nil {
			return engine.ChannelData{}, err
		}
		if rec.Type == engine.ChannelGroup {
			e.upsertMemberLocked(tx, rec.ID, e.userID, nil)
		}
		return e.channelOut(rec), nil
	})
}

func (e *Engine) createChannelLocked(c engine.ChannelData) (*engine.ChannelData, error) {
	if _, ok := e.channels[c.ID]; ok {
		return nil, fmt.Errorf("%w: channel %q", engine.ErrAlreadyExists, c.ID)
	}
	rec := cloneChannel(c)
	rec.Handle = 0
	rec.Updated = e.now()
	e.channels[c.ID] = &rec
	return &rec, nil
}

// directChannelID is stable for an unordered pair of users.
func directChannelID(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return "direct." + uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(pair, "&"))).String()
}

// CreateDirectConversation returns the 1:1 channel with inviteeID, creating
// it and both memberships when missing. The invitee gets an invite event.
func (e *Engine) CreateDirectConversation(inviteeID string, c engine.ChannelData) bridge.Future[engine.DirectConversation] {
	return call(e, func(tx *txn) (engine.DirectConversation, error) {
		if inviteeID == e.userID {
			return engine.DirectConversation{}, fmt.Errorf("%w: cannot start a conversation with yourself", engine.ErrInvalidArgument)
		}
		if _, err := e.userLocked(inviteeID); err != nil {
			return engine.DirectConversation{}, err
		}
		if c.ID == "" {
			c.ID = directChannelID(e.userID, inviteeID)
		}
		if err := e.canAccess(c.ID); err != nil {
			return engine.DirectConversation{}, err
		}
		c.Type = engine.ChannelDirect
		rec, ok := e.channels[c.ID]
		if !ok {
			var err error
			if rec, err = e.createChannelLocked(c); err != nil {
				return engine.DirectConversation{}, err
			}
		}
		host := e.upsertMemberLocked(tx, rec.ID, e.userID, nil)
		invitee := e.upsertMemberLocked(tx, rec.ID, inviteeID, nil)
		e.emitLocked(tx, engine.EventData{
			Type:      engine.EventInvite,
			UserID:    inviteeID,
			ChannelID: rec.ID,
			Payload:   map[string]any{"channelType": string(rec.Type), "channelId": rec.ID},
		})
		return engine.DirectConversation{
			Channel:           e.channelOut(rec),
			HostMembership:    e.membershipOut(host),
			InviteeMembership: e.membershipOut(invitee),
		}, nil
	})
}

func (e *Engine) GetChannel(id string) bridge.Future[engine.ChannelData] {
	return call(e, func(*txn) (engine.ChannelData, error) {
		c, err := e.channelLocked(id)
		if err != nil {
			return engine.ChannelData{}, err
		}
		return e.channelOut(c), nil
	})
}

// GetChannels lists channels, leaving out thread channels.
func (e *Engine) GetChannels(f engine.Filter) bridge.Future[[]engine.ChannelData] {
	return call(e, func(*txn) ([]engine.ChannelData, error) {
		var out []engine.ChannelData
		for _, id := range sortedKeys(e.channels) {
			c := e.channels[id]
			if c.IsThread() || !matches(f, c.ID, c.Name) {
				continue
			}
			out = append(out, e.channelOut(c))
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return out, nil
	})
}

func (e *Engine) UpdateChannel(id string, upd engine.ChannelUpdate) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		c, err := e.channelLocked(id)
		if err != nil {
			return engine.ChannelData{}, err
		}
		applyString(&c.Name, upd.Name)
		applyString(&c.Description, upd.Description)
		applyString(&c.Status, upd.Status)
		if upd.Type != nil {
			c.Type = *upd.Type
		}
		if upd.Custom != nil {
			c.Custom = maps.Clone(upd.Custom)
		}
		c.Updated = e.now()
		tx.publishChannel(e, c)
		return e.channelOut(c), nil
	})
}

// DeleteChannel marks the channel deleted when soft, otherwise drops it with
// its memberships, history and thread channels.
func (e *Engine) DeleteChannel(id string, soft bool) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		c, err := e.channelLocked(id)
		if err != nil {
			return engine.ChannelData{}, err
		}
		c.Updated = e.now()
		if soft {
			c.Status = statusDeleted
			tx.publishChannel(e, c)
			return e.channelOut(c), nil
		}
		tx.publishChannel(e, c)
		e.dropChannelLocked(id)
		return e.channelOut(c), nil
	})
}

func (e *Engine) dropChannelLocked(id string) {
	for _, m := range e.history[id] {
		if m.data.HasThread {
			e.dropChannelLocked(threadChannelID(id, m.data.Timetoken))
		}
	}
	delete(e.channels, id)
	delete(e.members, id)
	delete(e.history, id)
	delete(e.restrictions, id)
	delete(e.typingSent, id)
	e.limiter.forget(id)
}

func (e *Engine) WhoIsPresent(channelID string) bridge.Future[[]string] {
	return call(e, func(*txn) ([]string, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return nil, err
		}
		return e.occupantsLocked(channelID), nil
	})
}

func (e *Engine) occupantsLocked(channelID string) []string {
	var out []string
	for _, id := range sortedKeys(e.presence[channelID]) {
		if e.presence[channelID][id] > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) PinMessage(channelID, timetoken string) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		c, err := e.channelLocked(channelID)
		if err != nil {
			return engine.ChannelData{}, err
		}
		if _, err := e.messageLocked(channelID, timetoken); err != nil {
			return engine.ChannelData{}, err
		}
		c.PinnedMessage = timetoken
		c.Updated = e.now()
		tx.publishChannel(e, c)
		return e.channelOut(c), nil
	})
}

func (e *Engine) UnpinMessage(channelID string) bridge.Future[engine.ChannelData] {
	return call(e, func(tx *txn) (engine.ChannelData, error) {
		c, err := e.channelLocked(channelID)
		if err != nil {
			return engine.ChannelData{}, err
		}
		c.PinnedMessage = ""
		c.Updated = e.now()
		tx.publishChannel(e, c)
		return e.channelOut(c), nil
	})
}

type typingFrame struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type presenceFrame struct {
	Occupants []string `json:"occupants"`
}

// StartTyping announces the current user as typing. Repeats within the
// typing timeout (less a second) are not re-published.
func (e *Engine) StartTyping(channelID string) bridge.Future[engine.Empty] {
	return call(e, func(tx *txn) (engine.Empty, error) {
		c, err := e.channelLocked(channelID)
		if err != nil {
			return engine.Empty{}, err
		}
		if c.Type == engine.ChannelPublic {
			return engine.Empty{}, fmt.Errorf("%w: typing indicators are not supported in public channels", engine.ErrInvalidArgument)
		}
		now := e.now()
		if sent, ok := e.typingSent[channelID]; ok && now.Sub(sent) < e.cfg.TypingTimeout.Duration()-e.typingGrace() {
			return engine.Empty{}, nil
		}
		e.typingSent[channelID] = now
		tx.publish(e, envelope.TypeTyping, channelID, typingFrame{UserID: e.userID, Typing: true})
		return engine.Empty{}, nil
	})
}

func (e *Engine) typingGrace() time.Duration {
	if e.cfg.TypingTimeout.Duration() > time.Second {
		return time.Second
	}
	return 0
}

func (e *Engine) StopTyping(channelID string) bridge.Future[engine.Empty] {
	return call(e, func(tx *txn) (engine.Empty, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return engine.Empty{}, err
		}
		if _, ok := e.typingSent[channelID]; !ok {
			return engine.Empty{}, nil
		}
		delete(e.typingSent, channelID)
		tx.publish(e, envelope.TypeTyping, channelID, typingFrame{UserID: e.userID, Typing: false})
		return engine.Empty{}, nil
	})
}
