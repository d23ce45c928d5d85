// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/acceptors.go
// Summary: Copy-on-write registry of docking targets.
// Usage: Written by the lifecycle handler, read by every panel controller once per sampling pass.
// Notes: Readers load a whole snapshot atomically and never take the writer lock.

package dock

import (
	"log"
	"sync"
	"sync/atomic"
)

// AcceptorEntry pairs an acceptor id with its engine handle.
type AcceptorEntry struct {
	ID     string
	Handle Acceptor
}

// AcceptorSnapshot is an immutable, insertion-ordered view of the registry.
type AcceptorSnapshot struct {
	version uint64
	entries []AcceptorEntry
	index   map[string]int
}

var emptySnapshot = &AcceptorSnapshot{index: map[string]int{}}

// Version increases by one with every registry mutation.
func (s *AcceptorSnapshot) Version() uint64 { return s.version }

// Len returns the number of acceptors in the snapshot.
func (s *AcceptorSnapshot) Len() int { return len(s.entries) }

// Entries returns the acceptors in registration order. The slice is shared
// and must not be modified.
func (s *AcceptorSnapshot) Entries() []AcceptorEntry { return s.entries }

// Lookup returns the handle registered under id.
func (s *AcceptorSnapshot) Lookup(id string) (Acceptor, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entries[i].Handle, true
}

// SnapshotSource hands out the latest acceptor snapshot.
type SnapshotSource interface {
	Snapshot() *AcceptorSnapshot
}

// AcceptorRegistry tracks the live set of acceptors.
type AcceptorRegistry struct {
	writeMu    sync.Mutex
	current    atomic.Pointer[AcceptorSnapshot]
	dispatcher *EventDispatcher
}

// NewAcceptorRegistry creates an empty registry publishing to dispatcher,
// which may be nil.
func NewAcceptorRegistry(dispatcher *EventDispatcher) *AcceptorRegistry {
	r := &AcceptorRegistry{dispatcher: dispatcher}
	r.current.Store(emptySnapshot)
	return r
}

// Snapshot returns the current immutable view.
func (r *AcceptorRegistry) Snapshot() *AcceptorSnapshot {
	return r.current.Load()
}

// Add registers or replaces an acceptor. A replaced acceptor keeps its
// position in iteration order.
func (r *AcceptorRegistry) Add(id string, handle Acceptor) {
	if id == "" || handle == nil {
		log.Printf("Acceptors: Ignoring invalid acceptor %q", id)
		return
	}
	r.writeMu.Lock()
	prev := r.current.Load()
	next := &AcceptorSnapshot{
		version: prev.version + 1,
		entries: make([]AcceptorEntry, len(prev.entries), len(prev.entries)+1),
		index:   make(map[string]int, len(prev.index)+1),
	}
	copy(next.entries, prev.entries)
	for k, v := range prev.index {
		next.index[k] = v
	}
	if i, ok := next.index[id]; ok {
		next.entries[i] = AcceptorEntry{ID: id, Handle: handle}
	} else {
		next.index[id] = len(next.entries)
		next.entries = append(next.entries, AcceptorEntry{ID: id, Handle: handle})
	}
	r.current.Store(next)
	r.writeMu.Unlock()

	r.dispatcher.publish(EventAcceptorAdded, TransitionPayload{AcceptorID: id})
}

// Remove drops an acceptor. Unknown ids are ignored.
func (r *AcceptorRegistry) Remove(id string) {
	r.writeMu.Lock()
	prev := r.current.Load()
	if _, ok := prev.index[id]; !ok {
		r.writeMu.Unlock()
		return
	}
	next := &AcceptorSnapshot{
		version: prev.version + 1,
		entries: make([]AcceptorEntry, 0, len(prev.entries)-1),
		index:   make(map[string]int, len(prev.index)),
	}
	for _, e := range prev.entries {
		if e.ID == id {
			continue
		}
		next.index[e.ID] = len(next.entries)
		next.entries = append(next.entries, e)
	}
	r.current.Store(next)
	r.writeMu.Unlock()

	r.dispatcher.publish(EventAcceptorRemoved, TransitionPayload{AcceptorID: id})
}
