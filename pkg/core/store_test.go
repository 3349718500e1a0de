package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/plurinotes/pkg/core"
)

func tickingClock() func() time.Time {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestStore(t *testing.T) (*core.Store, *MockGateway) {
	t.Helper()
	gw := NewMockGateway()
	s := core.NewStore(gw, core.WithClock(tickingClock()))
	require.NoError(t, s.Load(context.Background()))
	return s, gw
}

func mustArticle(t *testing.T, s *core.Store, id, text string) *core.Note {
	t.Helper()
	n, err := s.CreateNote(context.Background(), core.NoteSpec{
		ID:         id,
		Title:      "Note " + id,
		Kind:       core.KindArticle,
		Attributes: core.Attributes{core.AttrText: text},
	})
	require.NoError(t, err)
	return n
}

func latestText(t *testing.T, n *core.Note) string {
	t.Helper()
	v, ok := n.Latest()
	require.True(t, ok)
	a, ok := v.(core.Article)
	require.True(t, ok, "expected an article, got %T", v)
	return a.Text
}

func TestStore_CreateNote(t *testing.T) {
	s, gw := newTestStore(t)
	ctx := context.Background()

	a1 := mustArticle(t, s, "A1", "hello")

	found, ok := s.Note("A1")
	require.True(t, ok)
	assert.Same(t, a1, found)
	assert.Equal(t, "A1", found.ID())
	assert.Equal(t, "Note A1", found.Title())
	assert.Equal(t, core.KindArticle, found.Kind())
	assert.Equal(t, core.StateActive, found.State())
	assert.Equal(t, "hello", latestText(t, found))
	assert.Equal(t, 1, found.Len())
	assert.Equal(t, 1, s.ActiveCount(core.KindArticle))
	assert.Equal(t, 1, gw.Calls("SaveNote"))
	assert.Equal(t, 1, gw.Calls("SaveVersion"))

	t.Run("duplicate id leaves the store unchanged", func(t *testing.T) {
		_, err := s.CreateNote(ctx, core.NoteSpec{ID: "A1", Kind: core.KindTask})
		require.ErrorIs(t, err, core.ErrAlreadyExists)
		assert.Len(t, s.Notes(), 1)
		assert.Equal(t, 0, s.ActiveCount(core.KindTask))
		assert.Equal(t, 1, s.ActiveCount(core.KindArticle))
		assert.Equal(t, 1, gw.Calls("SaveNote"))
	})

	t.Run("invalid input", func(t *testing.T) {
		cases := []struct {
			name string
			spec core.NoteSpec
		}{
			{"empty id", core.NoteSpec{ID: " ", Kind: core.KindArticle}},
			{"unknown kind", core.NoteSpec{ID: "X1", Kind: core.KindUnknown}},
			{"unknown state", core.NoteSpec{ID: "X2", Kind: core.KindArticle, State: core.State(9)}},
			{"priority out of range", core.NoteSpec{ID: "X3", Kind: core.KindTask, Attributes: core.Attributes{core.AttrPriority: 6}}},
			{"wrong attribute type", core.NoteSpec{ID: "X4", Kind: core.KindArticle, Attributes: core.Attributes{core.AttrText: 42}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := s.CreateNote(ctx, tc.spec)
				require.ErrorIs(t, err, core.ErrInvalidArgument)
				_, ok := s.Note(tc.spec.ID)
				assert.False(t, ok)
			})
		}
	})

	t.Run("inactive initial state is not counted", func(t *testing.T) {
		_, err := s.CreateNote(ctx, core.NoteSpec{ID: "M1", Kind: core.KindMedia, State: core.StateArchived})
		require.NoError(t, err)
		assert.Equal(t, 0, s.ActiveCount(core.KindMedia))
	})
}

func TestStore_CreateVersion(t *testing.T) {
	s, gw := newTestStore(t)
	ctx := context.Background()

	n := mustArticle(t, s, "A1", "first")
	first, _ := n.Latest()

	v, report, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: "second"})
	require.NoError(t, err)
	assert.False(t, report.Changed())

	latest, ok := n.Latest()
	require.True(t, ok)
	assert.Equal(t, v, latest)
	assert.Equal(t, 2, n.Len())
	assert.Equal(t, 2, gw.Calls("SaveVersion"))

	history := n.History()
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].(core.Article).Text)
	assert.Equal(t, first, history[1], "older versions are never modified")
	assert.True(t, history[0].ModifiedAt().After(history[1].ModifiedAt()))

	t.Run("unknown note", func(t *testing.T) {
		_, _, err := s.CreateVersion(ctx, "nope", nil)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("rejected attributes leave the history alone", func(t *testing.T) {
		_, _, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: []int{1}})
		require.ErrorIs(t, err, core.ErrInvalidArgument)
		assert.Equal(t, 2, n.Len())
	})
}

func TestStore_TaskAndMediaVersions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deadline := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	task, err := s.CreateNote(ctx, core.NoteSpec{
		ID:   "T1",
		Kind: core.KindTask,
		Attributes: core.Attributes{
			core.AttrAction:   "write report",
			core.AttrStatus:   "standby",
			core.AttrPriority: 3,
			core.AttrDeadline: deadline.Format(time.RFC3339),
		},
	})
	require.NoError(t, err)
	v, _ := task.Latest()
	require.IsType(t, core.Task{}, v)
	tv := v.(core.Task)
	assert.Equal(t, "write report", tv.Action)
	assert.Equal(t, core.StatusStandby, tv.Status)
	assert.Equal(t, 3, tv.Priority)
	assert.True(t, tv.Deadline.Equal(deadline))

	media, err := s.CreateNote(ctx, core.NoteSpec{
		ID:         "M1",
		Kind:       core.KindMedia,
		Attributes: core.Attributes{core.AttrDescription: "cover", core.AttrFilename: "cover.png"},
	})
	require.NoError(t, err)
	mv, _ := media.Latest()
	assert.Equal(t, "cover.png", mv.(core.Media).Filename)
	assert.Equal(t, core.KindMedia, mv.Kind())
}

func TestStore_ReferenceSync(t *testing.T) {
	ctx := context.Background()

	t.Run("edit adds then removes a reference", func(t *testing.T) {
		s, _ := newTestStore(t)
		a1 := mustArticle(t, s, "A1", "hello")
		a2 := mustArticle(t, s, "A2", "target")
		ref, ok := s.Relation(core.ReferenceRelation)
		require.True(t, ok)

		_, report, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: `see \ref{A2}`})
		require.NoError(t, err)
		assert.Equal(t, []string{"A2"}, report.Added)
		_, ok = ref.Couple(a1, a2)
		assert.True(t, ok)
		_, ok = ref.Couple(a2, a1)
		assert.False(t, ok, "Reference is oriented")
		assert.Equal(t, []string{"A1"}, s.ReferencedBy("A2"))
		assert.Equal(t, []string{"A2"}, s.References("A1"))

		_, report, err = s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"A2"}, report.Removed)
		assert.Empty(t, report.Candidates, "active targets are not candidates")
		_, ok = ref.Couple(a1, a2)
		assert.False(t, ok)
	})

	t.Run("archived target losing its last referencer is a candidate", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A1", `\ref{A2}`)
		mustArticle(t, s, "A2", "target")
		// A1 was created before A2 existed
		_, err := s.SyncReferences(ctx, "A1")
		require.NoError(t, err)
		require.Equal(t, []string{"A1"}, s.ReferencedBy("A2"))

		require.NoError(t, s.ChangeState(ctx, "A2", core.StateArchived))

		_, report, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"A2"}, report.Candidates)

		n, _ := s.Note("A2")
		assert.Equal(t, core.StateArchived, n.State(), "candidates are reported, not deleted")
	})

	t.Run("archived target still referenced elsewhere is not a candidate", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A2", "target")
		mustArticle(t, s, "A1", `\ref{A2}`)
		mustArticle(t, s, "A3", `\ref{A2}`)
		require.NoError(t, s.ChangeState(ctx, "A2", core.StateArchived))

		_, report, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"A2"}, report.Removed)
		assert.Empty(t, report.Candidates)
	})

	t.Run("second run with unchanged text is a no-op", func(t *testing.T) {
		s, gw := newTestStore(t)
		mustArticle(t, s, "A2", "")
		mustArticle(t, s, "A1", `\ref{A2}`)
		saved, deleted := gw.Calls("SaveCouple"), gw.Calls("DeleteCouple")

		report, err := s.SyncReferences(ctx, "A1")
		require.NoError(t, err)
		assert.False(t, report.Changed())
		report, err = s.SyncReferences(ctx, "A1")
		require.NoError(t, err)
		assert.False(t, report.Changed())
		assert.Equal(t, saved, gw.Calls("SaveCouple"))
		assert.Equal(t, deleted, gw.Calls("DeleteCouple"))
	})

	t.Run("self, unknown and malformed markers are ignored", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A2", "")
		mustArticle(t, s, "A1", `\ref{A1} \ref{ghost} \ref{A2 \ref{}`)
		assert.Empty(t, s.References("A1"))
	})

	t.Run("title and variant text fields are scanned", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A1", "")
		mustArticle(t, s, "A2", "")
		mustArticle(t, s, "A3", "")

		_, err := s.CreateNote(ctx, core.NoteSpec{
			ID:         "M1",
			Title:      `about \ref{A1}`,
			Kind:       core.KindMedia,
			Attributes: core.Attributes{core.AttrDescription: `\ref{A2}`, core.AttrFilename: `\ref{A3}.png`},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2", "A3"}, s.References("M1"))

		_, err = s.CreateNote(ctx, core.NoteSpec{
			ID:         "T1",
			Kind:       core.KindTask,
			Attributes: core.Attributes{core.AttrAction: `review \ref{A1}`},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A1"}, s.References("T1"))

		report, err := s.SetTitle(ctx, "M1", "plain")
		require.NoError(t, err)
		assert.Equal(t, []string{"A1"}, report.Removed)
		assert.Equal(t, []string{"T1"}, s.ReferencedBy("A1"))
	})
}

func TestStore_ChangeState(t *testing.T) {
	ctx := context.Background()
	states := []core.State{core.StateActive, core.StateArchived, core.StateTrashed}

	for _, from := range states {
		for _, to := range states {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				s, _ := newTestStore(t)
				_, err := s.CreateNote(ctx, core.NoteSpec{ID: "N", Kind: core.KindTask, State: from})
				require.NoError(t, err)

				err = s.ChangeState(ctx, "N", to)
				if from != to && !core.CanTransition(from, to) {
					require.ErrorIs(t, err, core.ErrInvalidTransition)
					require.ErrorIs(t, err, core.ErrInvalidArgument)
					to = from
				} else {
					require.NoError(t, err)
				}

				n, _ := s.Note("N")
				assert.Equal(t, to, n.State())
				want := 0
				if to == core.StateActive {
					want = 1
				}
				assert.Equal(t, want, s.ActiveCount(core.KindTask))
			})
		}
	}

	t.Run("unknown note", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.ErrorIs(t, s.ChangeState(ctx, "nope", core.StateArchived), core.ErrNotFound)
	})
}

func TestStore_DeleteNote(t *testing.T) {
	ctx := context.Background()

	t.Run("referenced note is archived", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A2", "")
		mustArticle(t, s, "A1", `\ref{A2}`)

		state, err := s.DeleteNote(ctx, "A2")
		require.NoError(t, err)
		assert.Equal(t, core.StateArchived, state)
		n, _ := s.Note("A2")
		assert.Equal(t, core.StateArchived, n.State())
		assert.Equal(t, []string{"A1"}, s.ReferencedBy("A2"), "archiving keeps couples")
		assert.Equal(t, 1, s.ActiveCount(core.KindArticle))
	})

	t.Run("unreferenced note is detached and trashed", func(t *testing.T) {
		s, gw := newTestStore(t)
		mustArticle(t, s, "A1", `\ref{A2}`)
		mustArticle(t, s, "A2", "")
		mustArticle(t, s, "A3", "")
		_, err := s.SyncReferences(ctx, "A1")
		require.NoError(t, err)
		_, err = s.CreateRelation(ctx, "Draft", "", true)
		require.NoError(t, err)
		_, err = s.CreateCouple(ctx, "Draft", "A3", "A1", "v1")
		require.NoError(t, err)

		state, err := s.DeleteNote(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, core.StateTrashed, state)

		draft, _ := s.Relation("Draft")
		assert.Zero(t, draft.Len())
		assert.Empty(t, s.References("A1"))
		assert.Equal(t, 2, gw.Calls("DeleteCouple"))
		assert.Equal(t, 2, s.ActiveCount(core.KindArticle))
		assert.Equal(t, 1, s.TrashCount())

		state, err = s.DeleteNote(ctx, "A1")
		require.NoError(t, err, "deleting a trashed note is a no-op")
		assert.Equal(t, core.StateTrashed, state)
	})

	t.Run("archived unreferenced note goes to the trash", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustArticle(t, s, "A1", "")
		require.NoError(t, s.ChangeState(ctx, "A1", core.StateArchived))
		state, err := s.DeleteNote(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, core.StateTrashed, state)
		assert.Equal(t, 0, s.ActiveCount(core.KindArticle))
	})

	t.Run("unknown note", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.DeleteNote(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestStore_EmptyTrash(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t)

	mustArticle(t, s, "A1", "")
	mustArticle(t, s, "A2", "")
	mustArticle(t, s, "A3", "")
	_, err := s.CreateNote(ctx, core.NoteSpec{ID: "T1", Kind: core.KindTask})
	require.NoError(t, err)

	require.NoError(t, s.ChangeState(ctx, "A2", core.StateArchived))
	_, err = s.DeleteNote(ctx, "A3")
	require.NoError(t, err)
	_, err = s.DeleteNote(ctx, "T1")
	require.NoError(t, err)

	activeBefore := s.ActiveTotal()
	report, err := s.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Purged)
	assert.Empty(t, report.Candidates)
	assert.Equal(t, activeBefore, s.ActiveTotal())
	assert.Equal(t, 0, s.TrashCount())
	assert.Equal(t, 2, gw.Calls("DeleteNote"))

	ids := []string{}
	for _, n := range s.Notes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"A1", "A2"}, ids)

	report, err = s.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Purged)
}

func TestStore_EmptyTrashReportsOrphanedTargets(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mustArticle(t, s, "A1", "")
	mustArticle(t, s, "A2", "")
	mustArticle(t, s, "B1", `\ref{A1} \ref{A2}`)
	mustArticle(t, s, "B2", `\ref{A2}`)
	require.NoError(t, s.ChangeState(ctx, "A1", core.StateArchived))
	require.NoError(t, s.ChangeState(ctx, "A2", core.StateArchived))

	// trashing through ChangeState keeps B1's outgoing references
	require.NoError(t, s.ChangeState(ctx, "B1", core.StateTrashed))
	assert.Equal(t, []string{"B1"}, s.ReferencedBy("A1"))

	report, err := s.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Equal(t, []string{"A1"}, report.Candidates, "A2 is still referenced by B2")
	assert.Empty(t, s.ReferencedBy("A1"))
}

func TestStore_EmptyTrashCompletesOnFailure(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t)

	for _, id := range []string{"A1", "A2", "A3"} {
		mustArticle(t, s, id, "")
		_, err := s.DeleteNote(ctx, id)
		require.NoError(t, err)
	}
	gw.failOn["DeleteNote"] = true

	report, err := s.EmptyTrash(ctx)
	require.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, report.Purged)
	assert.Empty(t, s.Notes())
	assert.Equal(t, 3, gw.Calls("DeleteNote"))
}

func TestStore_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t)
	gw.failOn["SaveNote"] = true

	n, err := s.CreateNote(ctx, core.NoteSpec{ID: "A1", Kind: core.KindArticle})
	require.ErrorIs(t, err, core.ErrPersistence)
	require.NotNil(t, n)
	_, ok := s.Note("A1")
	assert.True(t, ok)
	assert.Equal(t, 1, s.ActiveCount(core.KindArticle))

	err = s.ChangeState(ctx, "A1", core.StateArchived)
	require.ErrorIs(t, err, core.ErrPersistence)
	assert.Equal(t, core.StateArchived, n.State())
	assert.Equal(t, 0, s.ActiveCount(core.KindArticle))
}

func TestStore_Relations(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t)
	a := mustArticle(t, s, "A", "")
	b := mustArticle(t, s, "B", "")
	mustArticle(t, s, "C", "")

	draft, err := s.CreateRelation(ctx, "Draft", "drafts of", true)
	require.NoError(t, err)
	planning, err := s.CreateRelation(ctx, "Planning", "", false)
	require.NoError(t, err)

	_, err = s.CreateRelation(ctx, "Draft", "", false)
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
	_, err = s.CreateRelation(ctx, "", "", false)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	t.Run("oriented", func(t *testing.T) {
		_, err := s.CreateCouple(ctx, "Draft", "A", "B", "first")
		require.NoError(t, err)
		_, err = s.CreateCouple(ctx, "Draft", "A", "B", "")
		assert.ErrorIs(t, err, core.ErrAlreadyExists)
		_, err = s.CreateCouple(ctx, "Draft", "B", "A", "back")
		require.NoError(t, err)

		ab, ok := draft.Couple(a, b)
		require.True(t, ok)
		ba, ok := draft.Couple(b, a)
		require.True(t, ok)
		assert.NotEqual(t, ab, ba)
		assert.Equal(t, "first", ab.Label())

		assert.Equal(t, []core.Peer{{ID: "B", Label: "first"}}, draft.CouplesInvolving("A", core.SideAscendant))
		assert.Equal(t, []core.Peer{{ID: "B", Label: "back"}}, draft.CouplesInvolving("A", core.SideDescendant))
	})

	t.Run("unoriented", func(t *testing.T) {
		_, err := s.CreateCouple(ctx, "Planning", "A", "C", "")
		require.NoError(t, err)
		_, err = s.CreateCouple(ctx, "Planning", "C", "A", "")
		assert.ErrorIs(t, err, core.ErrAlreadyExists)

		c, _ := s.Note("C")
		ac, ok1 := planning.Couple(a, c)
		ca, ok2 := planning.Couple(c, a)
		assert.True(t, ok1)
		assert.True(t, ok2)
		assert.Equal(t, ac, ca)
		assert.Equal(t,
			planning.CouplesInvolving("C", core.SideAscendant),
			planning.CouplesInvolving("C", core.SideDescendant))
	})

	t.Run("labels and descriptions", func(t *testing.T) {
		require.NoError(t, s.SetCoupleLabel(ctx, "Planning", "C", "A", "week 2"))
		c, _ := s.Note("C")
		couple, _ := planning.Couple(a, c)
		assert.Equal(t, "week 2", couple.Label())

		require.NoError(t, s.SetRelationDescription(ctx, "Draft", "is a draft of"))
		assert.Equal(t, "is a draft of", draft.Description())
		assert.ErrorIs(t, s.SetRelationDescription(ctx, "nope", ""), core.ErrNotFound)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := s.CreateCouple(ctx, "Draft", "A", "ghost", "")
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
		_, err = s.CreateCouple(ctx, "nope", "A", "B", "")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = s.CreateCouple(ctx, core.ReferenceRelation, "A", "B", "")
		assert.ErrorIs(t, err, core.ErrReservedRelation)
		assert.ErrorIs(t, s.DeleteCouple(ctx, core.ReferenceRelation, "A", "B"), core.ErrReservedRelation)
		assert.ErrorIs(t, s.DeleteCouple(ctx, "Planning", "A", "B"), core.ErrNotFound)
		assert.ErrorIs(t, s.SetCoupleLabel(ctx, "Planning", "A", "B", "x"), core.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		before := gw.Calls("DeleteCouple")
		require.NoError(t, s.DeleteCouple(ctx, "Draft", "B", "A"))
		assert.Equal(t, 1, draft.Len())
		assert.Equal(t, before+1, gw.Calls("DeleteCouple"))
	})

	names := []string{}
	for _, r := range s.Relations() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"Draft", "Planning", core.ReferenceRelation}, names)
}

func TestStore_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t)
	assert.Equal(t, 1, gw.Calls("SaveRelation"), "Reference relation is persisted on first load")

	mustArticle(t, s, "A2", "target")
	mustArticle(t, s, "A1", `v1 \ref{A2}`)
	_, _, err := s.CreateVersion(ctx, "A1", core.Attributes{core.AttrText: `v2 \ref{A2}`})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, core.NoteSpec{
		ID:         "T1",
		Kind:       core.KindTask,
		State:      core.StateArchived,
		Attributes: core.Attributes{core.AttrAction: "ship", core.AttrPriority: 5, core.AttrStatus: core.StatusDone},
	})
	require.NoError(t, err)
	_, err = s.CreateRelation(ctx, "Planning", "plan", false)
	require.NoError(t, err)
	_, err = s.CreateCouple(ctx, "Planning", "A1", "T1", "next")
	require.NoError(t, err)

	reloaded := core.NewStore(gw)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 2, gw.Calls("SaveRelation"), "Reference relation already exists")

	for _, orig := range s.Notes() {
		got, ok := reloaded.Note(orig.ID())
		require.True(t, ok, orig.ID())
		assert.Equal(t, orig.Title(), got.Title())
		assert.Equal(t, orig.Kind(), got.Kind())
		assert.Equal(t, orig.State(), got.State())
		assert.Equal(t, orig.History(), got.History())
	}
	for _, k := range core.Kinds {
		assert.Equal(t, s.ActiveCount(k), reloaded.ActiveCount(k), k.String())
	}
	assert.Equal(t, []string{"A1"}, reloaded.ReferencedBy("A2"))

	planning, ok := reloaded.Relation("Planning")
	require.True(t, ok)
	assert.False(t, planning.Oriented())
	assert.Equal(t, "plan", planning.Description())
	assert.Equal(t, []core.Peer{{ID: "T1", Label: "next"}}, planning.CouplesInvolving("A1", core.SideAscendant))
}

func TestStore_Counts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mustArticle(t, s, "A1", "")
	mustArticle(t, s, "A2", "")
	mustArticle(t, s, "A3", "")
	_, err := s.CreateNote(ctx, core.NoteSpec{ID: "T1", Kind: core.KindTask})
	require.NoError(t, err)

	assert.Equal(t, 3, s.RowCount())
	assert.Equal(t, 4, s.ActiveTotal())

	_, err = s.DeleteNote(ctx, "A1")
	require.NoError(t, err)
	require.NoError(t, s.ChangeState(ctx, "A2", core.StateArchived))

	assert.Equal(t, 1, s.RowCount())
	assert.Equal(t, 2, s.ActiveTotal())
	assert.Equal(t, 1, s.TrashCount())
	assert.Len(t, s.NotesInState(core.StateArchived), 1)

	state := s.State().(core.StoreState)
	assert.Equal(t, 4, state.Notes)
	assert.Equal(t, 1, state.Trashed)
	assert.Equal(t, 1, state.Archived)
	assert.Equal(t, 1, state.Active["article"])
	assert.Equal(t, "store", s.ComponentType())
}
