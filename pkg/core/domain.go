// Package core holds the note domain: notes and their version history, the
// relation graph, the reference synchronizer and the entity store that keeps
// them consistent.
package core

import (
	"fmt"
	"strings"
)

// Kind is the immutable content type of a note.
type Kind int

const (
	KindUnknown Kind = iota - 1
	KindArticle
	KindMedia
	KindTask
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindArticle, KindMedia, KindTask}

func (k Kind) String() string {
	switch k {
	case KindArticle:
		return "article"
	case KindMedia:
		return "media"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of Article, Media or Task.
func (k Kind) Valid() bool {
	return k == KindArticle || k == KindMedia || k == KindTask
}

// ParseKind converts a name ("article", "media", "task") into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "article":
		return KindArticle, nil
	case "media":
		return KindMedia, nil
	case "task":
		return KindTask, nil
	}
	return KindUnknown, fmt.Errorf("%w: unknown note kind %q", ErrInvalidArgument, s)
}

// State is the lifecycle state of a note.
type State int

const (
	StateActive State = iota
	StateArchived
	StateTrashed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateArchived:
		return "archived"
	case StateTrashed:
		return "trashed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	return s == StateActive || s == StateArchived || s == StateTrashed
}

// ParseState converts a name into a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StateActive, nil
	case "archived", "archive":
		return StateArchived, nil
	case "trashed", "trash":
		return StateTrashed, nil
	}
	return StateActive, fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, s)
}

// TaskStatus is the progress of a task version.
type TaskStatus int

const (
	StatusInProgress TaskStatus = iota
	StatusStandby
	StatusDone
)

func (s TaskStatus) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusStandby:
		return "standby"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == StatusInProgress || s == StatusStandby || s == StatusDone
}

// ParseTaskStatus converts a name into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in-progress", "inprogress", "progress":
		return StatusInProgress, nil
	case "standby":
		return StatusStandby, nil
	case "done":
		return StatusDone, nil
	}
	return StatusInProgress, fmt.Errorf("%w: unknown task status %q", ErrInvalidArgument, s)
}

// MaxPriority is the highest task priority. Zero means no priority.
const MaxPriority = 5

// ReferenceRelation is the name of the oriented relation maintained from
// \ref{id} markers. Callers cannot create or delete its couples directly.
const ReferenceRelation = "Reference"
