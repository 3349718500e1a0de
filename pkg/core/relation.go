package core

import (
	"fmt"
	"sync"
)

// Couple is one labeled pair of notes inside a relation. It borrows both
// notes from the Store and is removed before either note leaves it.
type Couple struct {
	asc   *Note
	desc  *Note
	label string
}

func (c Couple) Ascendant() *Note  { return c.asc }
func (c Couple) Descendant() *Note { return c.desc }
func (c Couple) Label() string     { return c.label }

func (c Couple) involves(n *Note) bool {
	return c.asc == n || c.desc == n
}

func (c Couple) record() CoupleRecord {
	return CoupleRecord{Ascendant: c.asc.ID(), Descendant: c.desc.ID(), Label: c.label}
}

// Side selects the role a note plays in a couple.
type Side int

const (
	SideAscendant Side = iota
	SideDescendant
)

// Peer is the other end of a couple seen from one note.
type Peer struct {
	ID    string
	Label string
}

// Relation is a named, possibly oriented set of couples.
// In an unoriented relation (a,b) and (b,a) are the same couple.
type Relation struct {
	name     string
	oriented bool

	mu          sync.RWMutex
	description string
	couples     []Couple
}

func newRelation(name, description string, oriented bool) *Relation {
	return &Relation{name: name, description: description, oriented: oriented}
}

func (r *Relation) Name() string   { return r.name }
func (r *Relation) Oriented() bool { return r.oriented }

func (r *Relation) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.description
}

// Couples returns a snapshot of the couples in insertion order.
func (r *Relation) Couples() []Couple {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Couple(nil), r.couples...)
}

// Len returns the number of couples.
func (r *Relation) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.couples)
}

// Couple looks up the couple (a, b). For unoriented relations (b, a) matches too.
func (r *Relation) Couple(a, b *Note) (Couple, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(a, b)
	if i < 0 {
		return Couple{}, false
	}
	return r.couples[i], true
}

// CouplesInvolving returns the peers of the note with id noteID when it
// plays the given side. Unoriented relations ignore side.
func (r *Relation) CouplesInvolving(noteID string, side Side) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []Peer
	for _, c := range r.couples {
		asc, desc := c.asc.ID(), c.desc.ID()
		switch {
		case !r.oriented && asc == noteID:
			peers = append(peers, Peer{ID: desc, Label: c.label})
		case !r.oriented && desc == noteID:
			peers = append(peers, Peer{ID: asc, Label: c.label})
		case side == SideAscendant && asc == noteID:
			peers = append(peers, Peer{ID: desc, Label: c.label})
		case side == SideDescendant && desc == noteID:
			peers = append(peers, Peer{ID: asc, Label: c.label})
		}
	}
	return peers
}

// indexOf must be called with r.mu held.
func (r *Relation) indexOf(a, b *Note) int {
	if a == nil || b == nil {
		return -1
	}
	for i, c := range r.couples {
		if c.asc == a && c.desc == b {
			return i
		}
		if !r.oriented && c.asc == b && c.desc == a {
			return i
		}
	}
	return -1
}

func (r *Relation) addCouple(a, b *Note, label string) (Couple, error) {
	if a == nil || b == nil {
		return Couple{}, fmt.Errorf("%w: couple endpoint is missing", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(a, b) >= 0 {
		return Couple{}, fmt.Errorf("%w: couple (%s, %s) in relation %q", ErrAlreadyExists, a.ID(), b.ID(), r.name)
	}
	c := Couple{asc: a, desc: b, label: label}
	r.couples = append(r.couples, c)
	return c, nil
}

func (r *Relation) removeCouple(a, b *Note) (Couple, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(a, b)
	if i < 0 {
		return Couple{}, fmt.Errorf("%w: couple in relation %q", ErrNotFound, r.name)
	}
	c := r.couples[i]
	r.couples = append(r.couples[:i], r.couples[i+1:]...)
	return c, nil
}

// removeInvolving drops every couple touching n and returns them.
// The sweep always covers the whole set.
func (r *Relation) removeInvolving(n *Note) []Couple {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Couple
	kept := r.couples[:0]
	for _, c := range r.couples {
		if c.involves(n) {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	// clear the tail so dropped notes are not retained by the backing array
	for i := len(kept); i < len(r.couples); i++ {
		r.couples[i] = Couple{}
	}
	r.couples = kept
	return removed
}

func (r *Relation) setLabel(a, b *Note, label string) (Couple, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(a, b)
	if i < 0 {
		return Couple{}, fmt.Errorf("%w: couple in relation %q", ErrNotFound, r.name)
	}
	r.couples[i].label = label
	return r.couples[i], nil
}

func (r *Relation) setDescription(d string) {
	r.mu.Lock()
	r.description = d
	r.mu.Unlock()
}

func (r *Relation) record(withCouples bool) RelationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := RelationRecord{Name: r.name, Description: r.description, Oriented: r.oriented}
	if withCouples {
		for _, c := range r.couples {
			rec.Couples = append(rec.Couples, c.record())
		}
	}
	return rec
}
