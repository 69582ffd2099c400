package memory

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

const statusDeleted = "deleted"

func (e *Engine) userOut(u *engine.UserData) engine.UserData {
	out := cloneUser(*u)
	out.Handle = e.issue()
	return out
}

func (e *Engine) userLocked(id string) (*engine.UserData, error) {
	u, ok := e.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", engine.ErrNotFound, id)
	}
	return u, nil
}

func (e *Engine) CreateUser(u engine.UserData) bridge.Future[engine.UserData] {
	return call(e, func(*txn) (engine.UserData, error) {
		if strings.TrimSpace(u.ID) == "" {
			return engine.UserData{}, fmt.Errorf("%w: user id is required", engine.ErrInvalidArgument)
		}
		if _, ok := e.users[u.ID]; ok {
			return engine.UserData{}, fmt.Errorf("%w: user %q", engine.ErrAlreadyExists, u.ID)
		}
		rec := cloneUser(u)
		rec.Handle = 0
		rec.Updated = e.now()
		e.users[u.ID] = &rec
		return e.userOut(&rec), nil
	})
}

func (e *Engine) GetUser(id string) bridge.Future[engine.UserData] {
	return call(e, func(*txn) (engine.UserData, error) {
		u, err := e.userLocked(id)
		if err != nil {
			return engine.UserData{}, err
		}
		return e.userOut(u), nil
	})
}

func (e *Engine) GetUsers(f engine.Filter) bridge.Future[[]engine.UserData] {
	return call(e, func(*txn) ([]engine.UserData, error) {
		var out []engine.UserData
		for _, id := range sortedKeys(e.users) {
			u := e.users[id]
			if !matches(f, u.ID, u.Name) {
				continue
			}
			out = append(out, e.userOut(u))
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return out, nil
	})
}

func matches(f engine.Filter, id, name string) bool {
	if f.Prefix == "" {
		return true
	}
	prefix := strings.ToLower(f.Prefix)
	return strings.HasPrefix(strings.ToLower(name), prefix) || strings.HasPrefix(strings.ToLower(id), prefix)
}

func (e *Engine) UpdateUser(id string, upd engine.UserUpdate) bridge.Future[engine.UserData] {
	return call(e, func(tx *txn) (engine.UserData, error) {
		u, err := e.userLocked(id)
		if err != nil {
			return engine.UserData{}, err
		}
		applyString(&u.Name, upd.Name)
		applyString(&u.ExternalID, upd.ExternalID)
		applyString(&u.ProfileURL, upd.ProfileURL)
		applyString(&u.Email, upd.Email)
		applyString(&u.Status, upd.Status)
		applyString(&u.Type, upd.Type)
		if upd.Custom != nil {
			u.Custom = maps.Clone(upd.Custom)
		}
		u.Updated = e.now()
		tx.publishUser(e, u)
		return e.userOut(u), nil
	})
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// DeleteUser marks the user deleted when soft, otherwise removes the user
// and every membership.
func (e *Engine) DeleteUser(id string, soft bool) bridge.Future[engine.UserData] {
	return call(e, func(tx *txn) (engine.UserData, error) {
		u, err := e.userLocked(id)
		if err != nil {
			return engine.UserData{}, err
		}
		if id == e.userID && !soft {
			return engine.UserData{}, fmt.Errorf("%w: cannot hard delete the current user", engine.ErrInvalidArgument)
		}
		u.Updated = e.now()
		if soft {
			u.Status = statusDeleted
			tx.publishUser(e, u)
			return e.userOut(u), nil
		}
		tx.publishUser(e, u)
		delete(e.users, id)
		for _, set := range e.members {
			delete(set, id)
		}
		return e.userOut(u), nil
	})
}

func (e *Engine) GetMemberships(userID string) bridge.Future[[]engine.MembershipData] {
	return call(e, func(*txn) ([]engine.MembershipData, error) {
		if _, err := e.userLocked(userID); err != nil {
			return nil, err
		}
		var out []engine.MembershipData
		for _, channelID := range sortedKeys(e.members) {
			if m, ok := e.members[channelID][userID]; ok {
				out = append(out, e.membershipOut(m))
			}
		}
		return out, nil
	})
}

func (e *Engine) WherePresent(userID string) bridge.Future[[]string] {
	return call(e, func(*txn) ([]string, error) {
		var out []string
		for _, channelID := range sortedKeys(e.presence) {
			if e.presence[channelID][userID] > 0 {
				out = append(out, channelID)
			}
		}
		return out, nil
	})
}

// MuteUser adds userID to the current user's mute list. Messages from muted
// users are dropped from listeners and history.
func (e *Engine) MuteUser(userID string) bridge.Future[[]string] {
	return call(e, func(*txn) ([]string, error) {
		if userID == "" || userID == e.userID {
			return nil, fmt.Errorf("%w: cannot mute %q", engine.ErrInvalidArgument, userID)
		}
		if !slices.Contains(e.muted, userID) {
			e.muted = append(e.muted, userID)
			slices.Sort(e.muted)
			e.syncMutedLocked()
		}
		return slices.Clone(e.muted), nil
	})
}

func (e *Engine) UnmuteUser(userID string) bridge.Future[[]string] {
	return call(e, func(*txn) ([]string, error) {
		if i := slices.Index(e.muted, userID); i >= 0 {
			e.muted = slices.Delete(e.muted, i, i+1)
			e.syncMutedLocked()
		}
		return slices.Clone(e.muted), nil
	})
}

// syncMutedLocked mirrors the mute list into the current user's custom data.
func (e *Engine) syncMutedLocked() {
	if !e.cfg.SyncMutedUsers {
		return
	}
	u := e.users[e.userID]
	if u.Custom == nil {
		u.Custom = map[string]any{}
	}
	u.Custom[engine.MutedUsersKey] = slices.Clone(e.muted)
	u.Updated = e.now()
}

func (e *Engine) isMuted(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.muted, userID)
}
