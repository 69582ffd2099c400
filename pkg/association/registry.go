// Package association maps engine handles back to the Go wrappers that own
// them, so multi-shot engine callbacks can be routed to the right wrapper
// without the engine holding Go objects.
//
// A registry never keeps a wrapper alive: it stores a weak back-reference.
// Wrappers remove their entry with Unregister on Close; the engine side marks
// a handle released with ReleaseHandle. An entry is empty as soon as either
// side is gone and is never repaired afterwards.
package association

import (
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

// Handle identifies one engine object handed to the binding layer.
type Handle uint64

var lastHandle atomic.Uint64

// NewHandle issues a process-unique, non-zero handle.
func NewHandle() Handle {
	return Handle(lastHandle.Add(1))
}

// MisconfiguredError is the panic value of Lookup on an unregistered handle.
// It means the bridge wiring is wrong; there is no correct way to recover.
type MisconfiguredError struct {
	Registry string
	Handle   Handle
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("association: %s: no live wrapper for handle %d", e.Registry, e.Handle)
}

type entry[W any] struct {
	wrapper  weak.Pointer[W]
	released bool
}

func (e *entry[W]) empty() bool {
	return e.released || e.wrapper.Value() == nil
}

// Registry is a handle-indexed table of wrappers of one kind. Lookups run
// concurrently; inserts and removals are exclusive.
type Registry[W any] struct {
	name    string
	mu      sync.RWMutex
	entries map[Handle]*entry[W]
}

// New returns an empty registry. name shows up in logs and panics.
func New[W any](name string) *Registry[W] {
	return &Registry[W]{name: name, entries: make(map[Handle]*entry[W])}
}

// Associate links w to h. If h already has a live entry it is kept and
// Associate reports false; an empty entry for h is replaced.
func (r *Registry[W]) Associate(w *W, h Handle) bool {
	if w == nil {
		panic("association: nil wrapper")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok && !e.empty() {
		return false
	}
	r.entries[h] = &entry[W]{wrapper: weak.Make(w)}
	return true
}

// Lookup returns the live wrapper for h. A miss panics with
// *MisconfiguredError: an engine callback for an unknown handle is a wiring
// bug, not a runtime condition.
func (r *Registry[W]) Lookup(h Handle) *W {
	if w, ok := r.Find(h); ok {
		return w
	}
	r.mu.Lock()
	if e, ok := r.entries[h]; ok && e.empty() {
		delete(r.entries, h)
	}
	r.mu.Unlock()
	err := &MisconfiguredError{Registry: r.name, Handle: h}
	log.Component("association").WithField("registry", r.name).WithField("handle", uint64(h)).Error(err.Error())
	panic(err)
}

// Find is the non-fatal form of Lookup.
func (r *Registry[W]) Find(h Handle) (*W, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok || e.released {
		return nil, false
	}
	w := e.wrapper.Value()
	return w, w != nil
}

// ReleaseHandle marks the engine side of h as gone. The entry stays until purged.
func (r *Registry[W]) ReleaseHandle(h Handle) {
	r.mu.Lock()
	if e, ok := r.entries[h]; ok {
		e.released = true
	}
	r.mu.Unlock()
}

// Unregister removes h immediately. Wrappers call it from Close.
func (r *Registry[W]) Unregister(h Handle) {
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
}

// Purge drops every empty entry and returns how many were removed.
func (r *Registry[W]) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for h, e := range r.entries {
		if e.empty() {
			delete(r.entries, h)
			n++
		}
	}
	if n > 0 {
		log.Component("association").WithField("registry", r.name).Debugf("purged %d stale entries", n)
	}
	return n
}

// Len counts entries, empty ones included.
func (r *Registry[W]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
