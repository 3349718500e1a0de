package core

import (
	"sync"
	"time"
)

// Note is the central entity of the domain: an identified content item of a
// fixed kind with a mutable title, a lifecycle state and its version history.
//
// Notes are owned by a Store. Callers receive borrowed pointers and read them
// through the accessors; every mutation goes through the Store.
type Note struct {
	id        string
	kind      Kind
	createdAt time.Time

	mu    sync.RWMutex
	title string
	state State
	// history is kept oldest-first so appends are cheap; History and Latest
	// present it newest-first.
	history []Version
}

func newNote(id, title string, kind Kind, createdAt time.Time, state State) *Note {
	return &Note{
		id:        id,
		title:     title,
		kind:      kind,
		createdAt: createdAt,
		state:     state,
	}
}

func (n *Note) ID() string           { return n.id }
func (n *Note) Kind() Kind           { return n.kind }
func (n *Note) CreatedAt() time.Time { return n.createdAt }

func (n *Note) Title() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.title
}

func (n *Note) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Editable reports whether new versions may be added from the UI.
func (n *Note) Editable() bool {
	return n.State() == StateActive
}

// Latest returns the most recent version, or false for a note without history.
func (n *Note) Latest() (Version, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.history) == 0 {
		return nil, false
	}
	return n.history[len(n.history)-1], true
}

// History returns the versions newest-first.
func (n *Note) History() []Version {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Version, len(n.history))
	for i, v := range n.history {
		out[len(n.history)-1-i] = v
	}
	return out
}

// Len returns the number of versions.
func (n *Note) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.history)
}

// createVersion builds a version from attrs, stamped now, and makes it the
// latest one. Persisted versions are appended as is by Store.Load. Side
// effects (persisting, reference sync) belong to the Store.
func (n *Note) createVersion(attrs Attributes, now time.Time) (Version, error) {
	v, err := BuildVersion(n.kind, attrs, now)
	if err != nil {
		return nil, err
	}
	n.appendVersion(v)
	return v, nil
}

func (n *Note) appendVersion(v Version) {
	n.mu.Lock()
	n.history = append(n.history, v)
	n.mu.Unlock()
}

func (n *Note) setTitle(title string) {
	n.mu.Lock()
	n.title = title
	n.mu.Unlock()
}

func (n *Note) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// record snapshots the note for the gateway. Versions are included only when
// withHistory is set.
func (n *Note) record(withHistory bool) NoteRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	rec := NoteRecord{
		ID:        n.id,
		Title:     n.title,
		Kind:      n.kind,
		CreatedAt: n.createdAt,
		State:     n.state,
	}
	if withHistory {
		rec.Versions = append([]Version(nil), n.history...)
	}
	return rec
}
