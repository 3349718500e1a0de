package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/plurinotes/pkg/adapters/sqlite"
	"github.com/aretw0/plurinotes/pkg/core"
)

func openGateway(t *testing.T, path string, opts ...sqlite.Option) *sqlite.Gateway {
	t.Helper()
	gw, err := sqlite.Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	require.NoError(t, gw.Initialize(context.Background()))
	return gw
}

func TestGateway_Seed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")

	gw := openGateway(t, path, sqlite.WithSeed())
	rels, err := gw.LoadRelations(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, r := range rels {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Draft", "Planning", core.ReferenceRelation}, names)
	assert.True(t, gw.State().(sqlite.GatewayState).Seeded)

	// Initialize is idempotent and never seeds twice
	require.NoError(t, gw.Initialize(ctx))
	rels, err = gw.LoadRelations(ctx)
	require.NoError(t, err)
	assert.Len(t, rels, 3)

	s := core.NewStore(gw)
	require.NoError(t, s.Load(ctx))
	planning, ok := s.Relation("Planning")
	require.True(t, ok)
	assert.False(t, planning.Oriented())
}

func TestGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")
	deadline := time.Date(2031, 6, 1, 8, 30, 0, 0, time.UTC)

	gw := openGateway(t, path)
	s := core.NewStore(gw)
	require.NoError(t, s.Load(ctx))

	_, err := s.CreateNote(ctx, core.NoteSpec{ID: "A2", Title: "target", Kind: core.KindArticle, Attributes: core.Attributes{core.AttrText: "v1"}})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, core.NoteSpec{ID: "A1", Title: "source", Kind: core.KindArticle, Attributes: core.Attributes{core.AttrText: `see \ref{A2}`}})
	require.NoError(t, err)
	_, _, err = s.CreateVersion(ctx, "A2", core.Attributes{core.AttrText: "v2"})
	require.NoError(t, err)
	_, _, err = s.CreateVersion(ctx, "A2", core.Attributes{core.AttrText: "v3"})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, core.NoteSpec{ID: "M1", Kind: core.KindMedia, Attributes: core.Attributes{core.AttrDescription: "clip", core.AttrFilename: "clip.mp4"}})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, core.NoteSpec{ID: "T1", Kind: core.KindTask, Attributes: core.Attributes{
		core.AttrAction: "plan", core.AttrStatus: core.StatusStandby, core.AttrPriority: 2, core.AttrDeadline: deadline,
	}})
	require.NoError(t, err)
	require.NoError(t, s.ChangeState(ctx, "M1", core.StateArchived))
	_, err = s.SetTitle(ctx, "T1", "renamed")
	require.NoError(t, err)

	_, err = s.CreateRelation(ctx, "Draft", "is a draft of", true)
	require.NoError(t, err)
	_, err = s.CreateCouple(ctx, "Draft", "A1", "T1", "")
	require.NoError(t, err)
	require.NoError(t, s.SetCoupleLabel(ctx, "Draft", "A1", "T1", "final"))
	require.NoError(t, s.SetRelationDescription(ctx, "Draft", "drafts"))

	reloaded := core.NewStore(openGateway(t, path))
	require.NoError(t, reloaded.Load(ctx))

	require.Len(t, reloaded.Notes(), 4)
	for _, orig := range s.Notes() {
		got, ok := reloaded.Note(orig.ID())
		require.True(t, ok, orig.ID())
		assert.Equal(t, orig.Title(), got.Title())
		assert.Equal(t, orig.Kind(), got.Kind())
		assert.Equal(t, orig.State(), got.State())
		assert.True(t, orig.CreatedAt().Equal(got.CreatedAt()))

		want, have := orig.History(), got.History()
		require.Len(t, have, len(want), orig.ID())
		for i := range want {
			assert.Equal(t, core.AttributesOf(want[i])[core.AttrText], core.AttributesOf(have[i])[core.AttrText])
			assert.True(t, want[i].ModifiedAt().Equal(have[i].ModifiedAt()))
		}
	}

	a2, _ := reloaded.Note("A2")
	texts := []string{}
	for _, v := range a2.History() {
		texts = append(texts, v.(core.Article).Text)
	}
	assert.Equal(t, []string{"v3", "v2", "v1"}, texts)

	t1, _ := reloaded.Note("T1")
	v, _ := t1.Latest()
	task := v.(core.Task)
	assert.Equal(t, core.StatusStandby, task.Status)
	assert.Equal(t, 2, task.Priority)
	assert.True(t, task.Deadline.Equal(deadline))
	assert.Equal(t, "renamed", t1.Title())

	assert.Equal(t, []string{"A1"}, reloaded.ReferencedBy("A2"))
	draft, ok := reloaded.Relation("Draft")
	require.True(t, ok)
	assert.True(t, draft.Oriented())
	assert.Equal(t, "drafts", draft.Description())
	assert.Equal(t, []core.Peer{{ID: "T1", Label: "final"}}, draft.CouplesInvolving("A1", core.SideAscendant))
	assert.Equal(t, 1, reloaded.ActiveCount(core.KindTask))
	assert.Equal(t, 0, reloaded.ActiveCount(core.KindMedia))
}

func TestGateway_RoundTripDistantDates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")
	created := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)

	s := core.NewStore(openGateway(t, path))
	require.NoError(t, s.Load(ctx))
	_, err := s.CreateNote(ctx, core.NoteSpec{ID: "T1", Kind: core.KindTask, CreatedAt: created, Attributes: core.Attributes{
		core.AttrAction: "far off", core.AttrDeadline: deadline,
	}})
	require.NoError(t, err)

	reloaded := core.NewStore(openGateway(t, path))
	require.NoError(t, reloaded.Load(ctx))
	n, ok := reloaded.Note("T1")
	require.True(t, ok)
	assert.True(t, n.CreatedAt().Equal(created), "created at %s", n.CreatedAt())
	latest, ok := n.Latest()
	require.True(t, ok)
	got := latest.(core.Task).Deadline
	assert.True(t, got.Equal(deadline), "deadline %s", got)
}

func TestGateway_DeleteNote(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")
	gw := openGateway(t, path)
	s := core.NewStore(gw)
	require.NoError(t, s.Load(ctx))

	_, err := s.CreateNote(ctx, core.NoteSpec{ID: "A1", Kind: core.KindArticle})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, core.NoteSpec{ID: "A2", Kind: core.KindArticle})
	require.NoError(t, err)
	_, err = s.DeleteNote(ctx, "A1")
	require.NoError(t, err)
	report, err := s.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)

	notes, err := gw.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "A2", notes[0].ID)
}

func TestGateway_Errors(t *testing.T) {
	ctx := context.Background()
	gw := openGateway(t, filepath.Join(t.TempDir(), "notes.db"))

	rec := core.NoteRecord{ID: "N", Kind: core.KindArticle, CreatedAt: time.Now()}
	require.NoError(t, gw.SaveNote(ctx, rec, true))
	assert.Error(t, gw.SaveNote(ctx, rec, true), "duplicate insert")
	assert.ErrorIs(t, gw.SaveNote(ctx, core.NoteRecord{ID: "ghost"}, false), core.ErrNotFound)
	assert.ErrorIs(t, gw.SaveVersion(ctx, "N", core.KindTask, core.Article{}), core.ErrTypeMismatch)
	assert.ErrorIs(t, gw.SaveRelation(ctx, core.RelationRecord{Name: "ghost"}, false), core.ErrNotFound)
	assert.ErrorIs(t, gw.SaveCouple(ctx, "ghost", core.CoupleRecord{Ascendant: "a", Descendant: "b"}, false), core.ErrNotFound)

	require.NoError(t, gw.Close())
	assert.False(t, gw.State().(sqlite.GatewayState).Open)
	assert.Equal(t, "sqlite", gw.ComponentType())
}
