package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/plurinotes/pkg/command"
	"github.com/aretw0/plurinotes/pkg/core"
)

func newTestShell(t *testing.T) (*shell, *core.Store, *bytes.Buffer) {
	t.Helper()
	store := core.NewStore(nil)
	require.NoError(t, store.Load(context.Background()))
	var out bytes.Buffer
	return newShell(store, &out), store, &out
}

func state(t *testing.T, s *core.Store, id string) core.State {
	t.Helper()
	n, ok := s.Note(id)
	require.True(t, ok, "note %s", id)
	return n.State()
}

func TestShell_ArchiveUndoRedo(t *testing.T) {
	ctx := context.Background()
	sh, store, _ := newTestShell(t)

	for _, line := range []string{"new article A1 hello", "archive A1"} {
		_, err := sh.exec(ctx, line)
		require.NoError(t, err, line)
	}
	assert.Equal(t, core.StateArchived, state(t, store, "A1"))

	_, err := sh.exec(ctx, "undo")
	require.NoError(t, err)
	assert.Equal(t, core.StateActive, state(t, store, "A1"))

	_, err = sh.exec(ctx, "redo")
	require.NoError(t, err)
	assert.Equal(t, core.StateArchived, state(t, store, "A1"))

	_, err = sh.exec(ctx, "redo")
	assert.ErrorIs(t, err, command.ErrNothingToRedo)
}

func TestShell_ReferencesAndPrune(t *testing.T) {
	ctx := context.Background()
	sh, store, out := newTestShell(t)

	for _, line := range []string{
		"new article A1 target",
		`new task T1 read \ref{A1}`,
		"archive A1",
		"edit T1 nothing left",
	} {
		_, err := sh.exec(ctx, line)
		require.NoError(t, err, line)
	}
	assert.Contains(t, out.String(), "-ref A1")
	assert.Contains(t, out.String(), "run prune")
	assert.Equal(t, []string{"A1"}, sh.candidates)

	_, err := sh.exec(ctx, "prune")
	require.NoError(t, err)
	assert.Equal(t, core.StateTrashed, state(t, store, "A1"))
	assert.Empty(t, sh.candidates)

	_, err = sh.exec(ctx, "empty")
	require.NoError(t, err)
	_, ok := store.Note("A1")
	assert.False(t, ok)
}

func TestShell_Errors(t *testing.T) {
	ctx := context.Background()
	sh, _, _ := newTestShell(t)

	_, err := sh.exec(ctx, "frobnicate")
	assert.ErrorIs(t, err, errUsage)

	_, err = sh.exec(ctx, "show")
	assert.ErrorIs(t, err, errUsage)

	_, err = sh.exec(ctx, "restore nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = sh.exec(ctx, "new video V1")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = sh.exec(ctx, "new article not-an-id")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = sh.exec(ctx, "new article A1")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "restore A1")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = sh.exec(ctx, "undo")
	assert.ErrorIs(t, err, command.ErrNothingToUndo)
}

func TestShell_Run(t *testing.T) {
	sh, store, out := newTestShell(t)
	in := strings.NewReader("new media M1 a cat\nbogus\nquit\nnew article never\n")

	require.NoError(t, sh.run(context.Background(), in, false))
	assert.Equal(t, 1, store.ActiveCount(core.KindMedia))
	assert.Contains(t, out.String(), "error:")
	_, ok := store.Note("never")
	assert.False(t, ok, "lines after quit must not run")
}

func TestContentInput_Validation(t *testing.T) {
	valid := createInput{ID: "abc_1", Kind: "task", contentInput: contentInput{Status: "done", Priority: 5, Deadline: "2025-01-31"}}
	assert.NoError(t, inputValidate.Struct(valid))

	for name, in := range map[string]createInput{
		"bad id":       {ID: "a-b", Kind: "task"},
		"bad kind":     {ID: "a", Kind: "video"},
		"bad priority": {ID: "a", Kind: "task", contentInput: contentInput{Priority: 6}},
		"bad status":   {ID: "a", Kind: "task", contentInput: contentInput{Status: "later"}},
		"bad deadline": {ID: "a", Kind: "task", contentInput: contentInput{Deadline: "31/01/2025"}},
	} {
		assert.Error(t, inputValidate.Struct(in), name)
	}

	assert.Error(t, inputValidate.Struct(relationInput{Name: core.ReferenceRelation}))
	assert.Regexp(t, noteIDPattern, newNoteID())
}
