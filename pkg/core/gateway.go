package core

import (
	"context"
	"time"
)

// Gateway defines the contract for durably storing notes, versions,
// relations and couples.
// Adhering to this interface keeps the core independent of the underlying
// storage mechanism (SQLite, a directory of YAML files, ...).
type Gateway interface {
	// LoadNotes returns every persisted note with its full history, versions
	// ordered oldest-first.
	LoadNotes(ctx context.Context) ([]NoteRecord, error)

	// LoadRelations returns every persisted relation with its couples.
	LoadRelations(ctx context.Context) ([]RelationRecord, error)

	// SaveNote inserts (isNew) or updates the note record. Versions are not
	// part of the note record.
	SaveNote(ctx context.Context, n NoteRecord, isNew bool) error

	// SaveVersion appends a version to the history of noteID.
	SaveVersion(ctx context.Context, noteID string, kind Kind, v Version) error

	// DeleteNote removes the note and all of its versions.
	DeleteNote(ctx context.Context, n NoteRecord) error

	SaveRelation(ctx context.Context, r RelationRecord, isNew bool) error
	SaveCouple(ctx context.Context, relation string, c CoupleRecord, isNew bool) error
	DeleteCouple(ctx context.Context, relation string, c CoupleRecord) error
}

// Initializer is implemented by gateways that need setup before the first
// load (schema creation, directories, git init).
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Watchable is implemented by gateways that can report changes made to the
// underlying storage by other processes.
type Watchable interface {
	// Watch emits events for entities whose storage key matches pattern
	// until ctx is cancelled.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

type contextKey string

// ChangeReasonKey is the context key for a human readable reason attached to
// a mutation. Gateways that keep a history use it as the change message.
const ChangeReasonKey contextKey = "change_reason"

// WithChangeReason returns a context carrying reason under ChangeReasonKey.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ChangeReasonKey, reason)
}

// ChangeReason returns the reason stored in ctx, or fallback.
func ChangeReason(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(ChangeReasonKey).(string); ok && v != "" {
		return v
	}
	return fallback
}

// NoteRecord is the persisted form of a note.
type NoteRecord struct {
	ID        string
	Title     string
	Kind      Kind
	CreatedAt time.Time
	State     State
	Versions  []Version // oldest-first
}

// RelationRecord is the persisted form of a relation.
type RelationRecord struct {
	Name        string
	Description string
	Oriented    bool
	Couples     []CoupleRecord
}

// CoupleRecord is the persisted form of a couple, identified by its
// relation and both note ids.
type CoupleRecord struct {
	Ascendant  string
	Descendant string
	Label      string
}

// EventType represents the type of change in the storage.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in the storage.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return string(e.Type) + " " + e.ID
}
