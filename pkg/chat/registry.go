package chat

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// Process-wide back-references from engine handles to live wrappers. Engine
// listeners only pass handles around; these resolve them.
var (
	users       = association.New[User]("user")
	channels    = association.New[Channel]("channel")
	threads     = association.New[ThreadChannel]("thread_channel")
	messages    = association.New[Message]("message")
	memberships = association.New[Membership]("membership")
)

// Purge drops registry entries whose wrappers were collected or closed. It
// returns how many entries went away. Chat.Close calls it.
func Purge() int {
	return users.Purge() + channels.Purge() + threads.Purge() + messages.Purge() + memberships.Purge()
}

// handleRef lets a cleanup release an engine handle without keeping the
// wrapper reachable.
type handleRef struct {
	eng    engine.Engine
	handle association.Handle
	forget func(association.Handle)
}

func releaseHandle(ref handleRef) {
	ref.eng.Release(ref.handle)
	ref.forget(ref.handle)
}

// wrapper is the lifetime shared by every object type.
type wrapper struct {
	chat    *Chat
	handle  association.Handle
	life    bridge.Lifetime
	cleanup runtime.Cleanup

	// lmu orders listener callbacks against Close: callbacks resolve their
	// wrapper under the read lock, unbind marks the wrapper closed under the
	// write lock before the registry entry goes.
	lmu       sync.RWMutex
	closed    bool
	listeners map[*subscription.Handle]struct{}
}

// bind associates w with its handle and arranges for the engine handle to be
// released if w is collected without Close.
func bind[W any](reg *association.Registry[W], w *W, base *wrapper) {
	reg.Associate(w, base.handle)
	base.cleanup = runtime.AddCleanup(w, releaseHandle, handleRef{
		eng:    base.chat.eng,
		handle: base.handle,
		forget: reg.ReleaseHandle,
	})
}

// unbind is the explicit teardown: open listeners close first, then the
// registry entry goes, then the engine handle. It reports false when already
// closed.
func unbind[W any](reg *association.Registry[W], base *wrapper) bool {
	if !base.life.Release() {
		return false
	}
	base.cleanup.Stop()
	for _, h := range base.closeListeners() {
		_ = h.Close()
	}
	reg.Unregister(base.handle)
	base.chat.eng.Release(base.handle)
	return true
}

func (w *wrapper) closeListeners() []*subscription.Handle {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	w.closed = true
	out := make([]*subscription.Handle, 0, len(w.listeners))
	for h := range w.listeners {
		out = append(out, h)
	}
	w.listeners = nil
	return out
}

func (w *wrapper) track(h *subscription.Handle) bool {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	if w.closed {
		return false
	}
	if w.listeners == nil {
		w.listeners = make(map[*subscription.Handle]struct{})
	}
	w.listeners[h] = struct{}{}
	return true
}

func (w *wrapper) untrack(h *subscription.Handle) {
	w.lmu.Lock()
	delete(w.listeners, h)
	w.lmu.Unlock()
}

// listen registers an engine listener owned by base. resolve turns an engine
// event into the value handed to fn; it runs under base's read lock, so the
// registry entries it looks up are still there. fn runs outside the lock.
// Events arriving once the listener or its owner is closed are dropped and
// their engine handle, if handleOf is set, released.
func listen[E, V any](
	base *wrapper,
	owner any,
	register func(fn func(association.Handle, E)) (subscription.Closer, error),
	resolve func(association.Handle, E) V,
	handleOf func(E) association.Handle,
	fn func(V),
) (subscription.Closer, error) {
	sub := subscription.NewHandle()
	if !base.track(sub) {
		return nil, fmt.Errorf("chat: listen on closed %T: %w", owner, bridge.ErrOwnerExpired)
	}
	closer, err := register(func(h association.Handle, e E) {
		base.lmu.RLock()
		if base.closed || sub.Closed() {
			base.lmu.RUnlock()
			if handleOf != nil {
				base.chat.eng.Release(handleOf(e))
			}
			return
		}
		v := resolve(h, e)
		base.lmu.RUnlock()
		fn(v)
	})
	if err != nil {
		base.untrack(sub)
		_ = sub.Close()
		return nil, err
	}
	if err := sub.Attach(closer); err != nil {
		return nil, err
	}
	return listener{
		Closer: subscription.CloserFunc(func() error {
			base.untrack(sub)
			return sub.Close()
		}),
		owner: owner,
		done:  sub.Done(),
	}, nil
}

// passthrough is the resolve step of listeners whose events need no wrapper.
func passthrough[E any](_ association.Handle, e E) E { return e }

func messageHandle(d engine.MessageData) association.Handle       { return d.Handle }
func membershipHandle(d engine.MembershipData) association.Handle { return d.Handle }
func channelHandle(d engine.ChannelData) association.Handle       { return d.Handle }
func userHandle(d engine.UserData) association.Handle             { return d.Handle }
