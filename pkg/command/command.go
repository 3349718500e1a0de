// Package command records reversible lifecycle operations on an undo/redo
// stack. Commands are plain data applied through a core.Store.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/plurinotes/pkg/core"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Command moves one note between two states. Apply goes From -> To only when
// the note is in From; Invert goes back only when it is in To. Anything else
// is ignored. Resync re-runs reference synchronization after inverting.
type Command struct {
	Name   string
	NoteID string
	From   core.State
	To     core.State
	Resync bool
}

// Archive is the command that moves an active note to the archive.
func Archive(noteID string) Command {
	return Command{Name: "archive", NoteID: noteID, From: core.StateActive, To: core.StateArchived}
}

// Restore is the command that brings an archived note back. Undoing it
// archives the note again and resynchronizes its references.
func Restore(noteID string) Command {
	return Command{Name: "restore", NoteID: noteID, From: core.StateArchived, To: core.StateActive, Resync: true}
}

// Apply performs the command against s.
func (c Command) Apply(ctx context.Context, s *core.Store) (core.SyncReport, error) {
	return c.move(ctx, s, c.From, c.To, false)
}

// Invert reverts the command against s.
func (c Command) Invert(ctx context.Context, s *core.Store) (core.SyncReport, error) {
	return c.move(ctx, s, c.To, c.From, c.Resync)
}

func (c Command) move(ctx context.Context, s *core.Store, from, to core.State, resync bool) (core.SyncReport, error) {
	n, ok := s.Note(c.NoteID)
	if !ok {
		return core.SyncReport{}, fmt.Errorf("%w: note %q", core.ErrNotFound, c.NoteID)
	}
	if n.State() != from {
		return core.SyncReport{}, nil
	}
	if err := s.ChangeState(ctx, c.NoteID, to); err != nil {
		return core.SyncReport{}, err
	}
	if !resync {
		return core.SyncReport{}, nil
	}
	return s.SyncReferences(ctx, c.NoteID)
}

func (c Command) String() string {
	return c.Name + " " + c.NoteID
}

// Stack is a pair of undo/redo stacks bound to one store.
type Stack struct {
	store *core.Store
	limit int

	mu   sync.Mutex
	undo []Command
	redo []Command
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithLimit bounds the undo history; the oldest commands are dropped first.
// Zero means unbounded.
func WithLimit(n int) StackOption {
	return func(s *Stack) {
		if n >= 0 {
			s.limit = n
		}
	}
}

// NewStack creates an empty stack applying commands to store.
func NewStack(store *core.Store, opts ...StackOption) *Stack {
	s := &Stack{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push applies c and records it. The redo stack is cleared. A command that
// fails to apply is not recorded unless the failure is a persistence one,
// in which case the in-memory change already happened.
func (s *Stack) Push(ctx context.Context, c Command) (core.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := c.Apply(ctx, s.store)
	if !recordable(err) {
		return report, err
	}
	s.undo = append(s.undo, c)
	if s.limit > 0 && len(s.undo) > s.limit {
		s.undo = s.undo[len(s.undo)-s.limit:]
	}
	s.redo = nil
	return report, err
}

// Undo inverts the most recent command and moves it to the redo stack. A
// command that fails with a domain error (its note was purged, say) can
// never succeed again and is dropped from both stacks.
func (s *Stack) Undo(ctx context.Context) (Command, core.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return Command{}, core.SyncReport{}, ErrNothingToUndo
	}
	c := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	report, err := c.Invert(ctx, s.store)
	if recordable(err) {
		s.redo = append(s.redo, c)
	}
	return c, report, err
}

// Redo re-applies the most recently undone command, with the same error
// handling as Undo.
func (s *Stack) Redo(ctx context.Context) (Command, core.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return Command{}, core.SyncReport{}, ErrNothingToRedo
	}
	c := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	report, err := c.Apply(ctx, s.store)
	if recordable(err) {
		s.undo = append(s.undo, c)
	}
	return c, report, err
}

// recordable reports whether the in-memory change behind err happened.
func recordable(err error) bool {
	return err == nil || errors.Is(err, core.ErrPersistence)
}

func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// History returns the undo stack, most recent last.
func (s *Stack) History() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.undo...)
}

// Clear drops both stacks.
func (s *Stack) Clear() {
	s.mu.Lock()
	s.undo, s.redo = nil, nil
	s.mu.Unlock()
}
