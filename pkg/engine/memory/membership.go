package memory

import (
	"fmt"
	"maps"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
)

func (e *Engine) membershipOut(m *engine.MembershipData) engine.MembershipData {
	out := cloneMembership(*m)
	out.Handle = e.issue()
	return out
}

func (e *Engine) memberLocked(channelID, userID string) (*engine.MembershipData, error) {
	m, ok := e.members[channelID][userID]
	if !ok {
		return nil, fmt.Errorf("%w: membership %s/%s", engine.ErrNotFound, channelID, userID)
	}
	return m, nil
}

// upsertMemberLocked creates or refreshes a membership and announces it.
func (e *Engine) upsertMemberLocked(tx *txn, channelID, userID string, custom map[string]any) *engine.MembershipData {
	set := e.members[channelID]
	if set == nil {
		set = make(map[string]*engine.MembershipData)
		e.members[channelID] = set
	}
	m, ok := set[userID]
	if !ok {
		m = &engine.MembershipData{ChannelID: channelID, UserID: userID}
		set[userID] = m
	}
	if custom != nil {
		m.Custom = maps.Clone(custom)
	}
	m.Updated = e.now()
	tx.publish(e, envelope.TypeMembership, channelID, *m)
	return m
}

// Join makes the current user a member of channelID.
func (e *Engine) Join(channelID string, custom map[string]any) bridge.Future[engine.MembershipData] {
	return call(e, func(tx *txn) (engine.MembershipData, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return engine.MembershipData{}, err
		}
		if err := e.canAccess(channelID); err != nil {
			return engine.MembershipData{}, err
		}
		if r, ok := e.restrictions[channelID][e.userID]; ok && r.Ban {
			return engine.MembershipData{}, fmt.Errorf("%w: %s", engine.ErrUnauthorized, restrictionLabel(r))
		}
		return e.membershipOut(e.upsertMemberLocked(tx, channelID, e.userID, custom)), nil
	})
}

func (e *Engine) Leave(channelID string) bridge.Future[engine.Empty] {
	return call(e, func(*txn) (engine.Empty, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return engine.Empty{}, err
		}
		delete(e.members[channelID], e.userID)
		return engine.Empty{}, nil
	})
}

// Invite adds userID to a group or direct channel and sends them an invite
// event. Public channels have no invitations.
func (e *Engine) Invite(channelID, userID string) bridge.Future[engine.MembershipData] {
	return call(e, func(tx *txn) (engine.MembershipData, error) {
		c, err := e.channelLocked(channelID)
		if err != nil {
			return engine.MembershipData{}, err
		}
		if c.Type == engine.ChannelPublic {
			return engine.MembershipData{}, fmt.Errorf("%w: invitations are not supported in public channels", engine.ErrInvalidArgument)
		}
		if _, err := e.userLocked(userID); err != nil {
			return engine.MembershipData{}, err
		}
		if m, ok := e.members[channelID][userID]; ok {
			return e.membershipOut(m), nil
		}
		m := e.upsertMemberLocked(tx, channelID, userID, nil)
		e.emitLocked(tx, engine.EventData{
			Type:      engine.EventInvite,
			UserID:    userID,
			ChannelID: channelID,
			Payload:   map[string]any{"channelType": string(c.Type), "channelId": channelID},
		})
		return e.membershipOut(m), nil
	})
}

func (e *Engine) GetMembers(channelID string) bridge.Future[[]engine.MembershipData] {
	return call(e, func(*txn) ([]engine.MembershipData, error) {
		if _, err := e.channelLocked(channelID); err != nil {
			return nil, err
		}
		set := e.members[channelID]
		out := make([]engine.MembershipData, 0, len(set))
		for _, id := range sortedKeys(set) {
			out = append(out, e.membershipOut(set[id]))
		}
		return out, nil
	})
}

func (e *Engine) UpdateMembership(channelID, userID string, custom map[string]any) bridge.Future[engine.MembershipData] {
	return call(e, func(tx *txn) (engine.MembershipData, error) {
		if _, err := e.memberLocked(channelID, userID); err != nil {
			return engine.MembershipData{}, err
		}
		return e.membershipOut(e.upsertMemberLocked(tx, channelID, userID, custom)), nil
	})
}

// SetLastReadMessage moves the read marker and, outside public channels,
// emits a receipt event.
func (e *Engine) SetLastReadMessage(channelID, userID, timetoken string) bridge.Future[engine.MembershipData] {
	return call(e, func(tx *txn) (engine.MembershipData, error) {
		m, err := e.memberLocked(channelID, userID)
		if err != nil {
			return engine.MembershipData{}, err
		}
		m.LastReadMessage = timetoken
		m.Updated = e.now()
		tx.publish(e, envelope.TypeMembership, channelID, *m)
		if c := e.channels[channelID]; c != nil && c.Type != engine.ChannelPublic {
			e.emitLocked(tx, engine.EventData{
				Type:      engine.EventReceipt,
				ChannelID: channelID,
				UserID:    userID,
				Payload:   map[string]any{"messageTimetoken": timetoken},
			})
		}
		return e.membershipOut(m), nil
	})
}

// UnreadCount counts live messages after the membership's read marker.
func (e *Engine) UnreadCount(channelID, userID string) bridge.Future[int] {
	return call(e, func(*txn) (int, error) {
		m, err := e.memberLocked(channelID, userID)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, msg := range e.history[channelID] {
			if msg.data.Timetoken > m.LastReadMessage && !msg.data.Deleted && !e.expired(msg) {
				n++
			}
		}
		return n, nil
	})
}

func restrictionLabel(r engine.Restriction) string {
	switch {
	case r.Ban:
		return "banned"
	case r.Mute:
		return "muted"
	default:
		return "lifted"
	}
}

// SetRestrictions bans or mutes a user on a channel; neither flag lifts the
// restriction. A ban also removes the membership. The user receives a
// moderation event either way.
func (e *Engine) SetRestrictions(r engine.Restriction) bridge.Future[engine.Empty] {
	return call(e, func(tx *txn) (engine.Empty, error) {
		if r.UserID == "" || r.ChannelID == "" {
			return engine.Empty{}, fmt.Errorf("%w: restriction needs a user and a channel", engine.ErrInvalidArgument)
		}
		if _, err := e.channelLocked(r.ChannelID); err != nil {
			return engine.Empty{}, err
		}
		set := e.restrictions[r.ChannelID]
		if set == nil {
			set = make(map[string]engine.Restriction)
			e.restrictions[r.ChannelID] = set
		}
		if r.Ban || r.Mute {
			set[r.UserID] = r
		} else {
			delete(set, r.UserID)
		}
		if r.Ban {
			delete(e.members[r.ChannelID], r.UserID)
		}
		e.emitLocked(tx, engine.EventData{
			Type:      engine.EventModerate,
			UserID:    r.UserID,
			ChannelID: r.ChannelID,
			Payload: map[string]any{
				"channelId":   r.ChannelID,
				"restriction": restrictionLabel(r),
				"reason":      r.Reason,
			},
		})
		return engine.Empty{}, nil
	})
}
