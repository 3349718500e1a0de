// Package sqlite provides a SQLite-backed persistence gateway.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/aretw0/plurinotes/pkg/core"
)

// schema mirrors the layout of the notes database: one table for the note
// records, one per version kind, and the relation graph.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    kind TEXT NOT NULL,
    created_at TEXT NOT NULL,
    state TEXT NOT NULL
);

-- Versions: seq keeps insertion order even for equal timestamps
CREATE TABLE IF NOT EXISTS articles (
    note_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    modified_at TEXT NOT NULL,
    text TEXT NOT NULL,
    PRIMARY KEY (note_id, seq)
);

CREATE TABLE IF NOT EXISTS media (
    note_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    modified_at TEXT NOT NULL,
    description TEXT NOT NULL,
    filename TEXT NOT NULL,
    PRIMARY KEY (note_id, seq)
);

CREATE TABLE IF NOT EXISTS tasks (
    note_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    modified_at TEXT NOT NULL,
    action TEXT NOT NULL,
    status TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    deadline TEXT,
    PRIMARY KEY (note_id, seq)
);

CREATE TABLE IF NOT EXISTS relations (
    name TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT '',
    oriented INTEGER NOT NULL DEFAULT 0
);

-- Note: No foreign keys - referential integrity is owned by the store
CREATE TABLE IF NOT EXISTS couples (
    relation TEXT NOT NULL,
    ascendant TEXT NOT NULL,
    descendant TEXT NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (relation, ascendant, descendant)
);

CREATE INDEX IF NOT EXISTS idx_couples_descendant ON couples(descendant);
`

// seedRelations are created in an empty database when seeding is enabled.
var seedRelations = []core.RelationRecord{
	{Name: core.ReferenceRelation, Description: `notes linked with \ref{id}`, Oriented: true},
	{Name: "Draft", Description: "is a draft of", Oriented: true},
	{Name: "Planning", Description: "is planned with", Oriented: false},
}

// Gateway implements core.Gateway on a SQLite database.
type Gateway struct {
	dsn    string
	seed   bool
	logger *slog.Logger

	mu     sync.RWMutex
	db     *sql.DB
	seeded bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSeed creates the template relations when the database has none.
func WithSeed() Option {
	return func(g *Gateway) { g.seed = true }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Open opens the database at dsn. Use a file path for persistent storage.
// The schema is created by Initialize.
func Open(dsn string, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		dsn:    dsn,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	g.db = db
	return g, nil
}

// Initialize creates the schema and, when enabled, seeds the template
// relations into an empty database.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if !g.seed {
		return nil
	}

	var count int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count relations: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, r := range seedRelations {
		if err := g.insertRelation(ctx, r); err != nil {
			return fmt.Errorf("failed to seed relation %q: %w", r.Name, err)
		}
	}
	g.seeded = true
	g.logger.Debug("seeded template relations", "count", len(seedRelations))
	return nil
}

// Close closes the database connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db != nil {
		err := g.db.Close()
		g.db = nil
		return err
	}
	return nil
}

// =============================================================================
// Notes and versions
// =============================================================================

// LoadNotes returns every note with its versions, oldest first.
func (g *Gateway) LoadNotes(ctx context.Context) ([]core.NoteRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, `SELECT id, title, kind, created_at, state FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var records []core.NoteRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec          core.NoteRecord
			kind, state  string
			created      string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &kind, &created, &state); err != nil {
			return nil, err
		}
		if rec.Kind, err = core.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("note %q: %w", rec.ID, err)
		}
		if rec.State, err = core.ParseState(state); err != nil {
			return nil, fmt.Errorf("note %q: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("note %q: %w", rec.ID, err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attach := func(id string, v core.Version) {
		if i, ok := index[id]; ok {
			records[i].Versions = append(records[i].Versions, v)
		}
	}
	if err := g.loadArticles(ctx, attach); err != nil {
		return nil, err
	}
	if err := g.loadMedia(ctx, attach); err != nil {
		return nil, err
	}
	if err := g.loadTasks(ctx, attach); err != nil {
		return nil, err
	}
	return records, nil
}

func (g *Gateway) loadArticles(ctx context.Context, attach func(string, core.Version)) error {
	rows, err := g.db.QueryContext(ctx, `SELECT note_id, modified_at, text FROM articles ORDER BY note_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       string
			modified string
			a        core.Article
		)
		if err := rows.Scan(&id, &modified, &a.Text); err != nil {
			return err
		}
		if a.Modified, err = parseTime(modified); err != nil {
			return fmt.Errorf("article %q: %w", id, err)
		}
		attach(id, a)
	}
	return rows.Err()
}

func (g *Gateway) loadMedia(ctx context.Context, attach func(string, core.Version)) error {
	rows, err := g.db.QueryContext(ctx, `SELECT note_id, modified_at, description, filename FROM media ORDER BY note_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       string
			modified string
			m        core.Media
		)
		if err := rows.Scan(&id, &modified, &m.Description, &m.Filename); err != nil {
			return err
		}
		if m.Modified, err = parseTime(modified); err != nil {
			return fmt.Errorf("media %q: %w", id, err)
		}
		attach(id, m)
	}
	return rows.Err()
}

func (g *Gateway) loadTasks(ctx context.Context, attach func(string, core.Version)) error {
	rows, err := g.db.QueryContext(ctx, `SELECT note_id, modified_at, action, status, priority, deadline FROM tasks ORDER BY note_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       string
			modified string
			status   string
			deadline sql.NullString
			t        core.Task
		)
		if err := rows.Scan(&id, &modified, &t.Action, &status, &t.Priority, &deadline); err != nil {
			return err
		}
		if t.Status, err = core.ParseTaskStatus(status); err != nil {
			return fmt.Errorf("task %q: %w", id, err)
		}
		if t.Modified, err = parseTime(modified); err != nil {
			return fmt.Errorf("task %q: %w", id, err)
		}
		if deadline.Valid {
			if t.Deadline, err = parseTime(deadline.String); err != nil {
				return fmt.Errorf("task %q: %w", id, err)
			}
		}
		attach(id, t)
	}
	return rows.Err()
}

// SaveNote inserts or updates the note record.
func (g *Gateway) SaveNote(ctx context.Context, n core.NoteRecord, isNew bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if isNew {
		_, err := g.db.ExecContext(ctx, `
			INSERT INTO notes (id, title, kind, created_at, state)
			VALUES (?, ?, ?, ?, ?)
		`, n.ID, n.Title, n.Kind.String(), formatTime(n.CreatedAt), n.State.String())
		if err != nil {
			return fmt.Errorf("failed to insert note %q: %w", n.ID, err)
		}
		return nil
	}

	res, err := g.db.ExecContext(ctx, `UPDATE notes SET title = ?, state = ? WHERE id = ?`, n.Title, n.State.String(), n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note %q: %w", n.ID, err)
	}
	return expectRow(res, "note "+n.ID)
}

// SaveVersion appends v to the history of noteID.
func (g *Gateway) SaveVersion(ctx context.Context, noteID string, kind core.Kind, v core.Version) error {
	if v == nil || v.Kind() != kind {
		return fmt.Errorf("%w: version does not match kind %s", core.ErrTypeMismatch, kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	switch v := v.(type) {
	case core.Article:
		_, err = g.db.ExecContext(ctx, `
			INSERT INTO articles (note_id, seq, modified_at, text)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM articles WHERE note_id = ?), ?, ?)
		`, noteID, noteID, formatTime(v.Modified), v.Text)
	case core.Media:
		_, err = g.db.ExecContext(ctx, `
			INSERT INTO media (note_id, seq, modified_at, description, filename)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM media WHERE note_id = ?), ?, ?, ?)
		`, noteID, noteID, formatTime(v.Modified), v.Description, v.Filename)
	case core.Task:
		var deadline sql.NullString
		if v.HasDeadline() {
			deadline = sql.NullString{String: formatTime(v.Deadline), Valid: true}
		}
		_, err = g.db.ExecContext(ctx, `
			INSERT INTO tasks (note_id, seq, modified_at, action, status, priority, deadline)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks WHERE note_id = ?), ?, ?, ?, ?, ?)
		`, noteID, noteID, formatTime(v.Modified), v.Action, v.Status.String(), v.Priority, deadline)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s version of %q: %w", kind, noteID, err)
	}
	return nil
}

// DeleteNote removes the note, its versions and any couple still naming it.
func (g *Gateway) DeleteNote(ctx context.Context, n core.NoteRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM articles WHERE note_id = ?`, []any{n.ID}},
		{`DELETE FROM media WHERE note_id = ?`, []any{n.ID}},
		{`DELETE FROM tasks WHERE note_id = ?`, []any{n.ID}},
		{`DELETE FROM couples WHERE ascendant = ? OR descendant = ?`, []any{n.ID, n.ID}},
		{`DELETE FROM notes WHERE id = ?`, []any{n.ID}},
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to delete note %q: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// Relations and couples
// =============================================================================

// LoadRelations returns every relation with its couples.
func (g *Gateway) LoadRelations(ctx context.Context) ([]core.RelationRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, `SELECT name, description, oriented FROM relations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var records []core.RelationRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec      core.RelationRecord
			oriented int
		)
		if err := rows.Scan(&rec.Name, &rec.Description, &oriented); err != nil {
			return nil, err
		}
		rec.Oriented = oriented != 0
		index[rec.Name] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	couples, err := g.db.QueryContext(ctx, `SELECT relation, ascendant, descendant, label FROM couples ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query couples: %w", err)
	}
	defer couples.Close()
	for couples.Next() {
		var (
			relation string
			c        core.CoupleRecord
		)
		if err := couples.Scan(&relation, &c.Ascendant, &c.Descendant, &c.Label); err != nil {
			return nil, err
		}
		i, ok := index[relation]
		if !ok {
			g.logger.Warn("couple of unknown relation", "relation", relation)
			continue
		}
		records[i].Couples = append(records[i].Couples, c)
	}
	return records, couples.Err()
}

// SaveRelation inserts the relation or updates its description.
func (g *Gateway) SaveRelation(ctx context.Context, r core.RelationRecord, isNew bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if isNew {
		if err := g.insertRelation(ctx, r); err != nil {
			return fmt.Errorf("failed to insert relation %q: %w", r.Name, err)
		}
		return nil
	}
	res, err := g.db.ExecContext(ctx, `UPDATE relations SET description = ? WHERE name = ?`, r.Description, r.Name)
	if err != nil {
		return fmt.Errorf("failed to update relation %q: %w", r.Name, err)
	}
	return expectRow(res, "relation "+r.Name)
}

func (g *Gateway) insertRelation(ctx context.Context, r core.RelationRecord) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO relations (name, description, oriented) VALUES (?, ?, ?)
	`, r.Name, r.Description, boolToInt(r.Oriented))
	return err
}

// SaveCouple inserts the couple or updates its label.
func (g *Gateway) SaveCouple(ctx context.Context, relation string, c core.CoupleRecord, isNew bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if isNew {
		_, err := g.db.ExecContext(ctx, `
			INSERT INTO couples (relation, ascendant, descendant, label) VALUES (?, ?, ?, ?)
		`, relation, c.Ascendant, c.Descendant, c.Label)
		if err != nil {
			return fmt.Errorf("failed to insert couple in %q: %w", relation, err)
		}
		return nil
	}
	res, err := g.db.ExecContext(ctx, `
		UPDATE couples SET label = ? WHERE relation = ? AND ascendant = ? AND descendant = ?
	`, c.Label, relation, c.Ascendant, c.Descendant)
	if err != nil {
		return fmt.Errorf("failed to update couple in %q: %w", relation, err)
	}
	return expectRow(res, "couple in "+relation)
}

// DeleteCouple removes the couple.
func (g *Gateway) DeleteCouple(ctx context.Context, relation string, c core.CoupleRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.db.ExecContext(ctx, `
		DELETE FROM couples WHERE relation = ? AND ascendant = ? AND descendant = ?
	`, relation, c.Ascendant, c.Descendant)
	if err != nil {
		return fmt.Errorf("failed to delete couple in %q: %w", relation, err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, what)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Timestamps are stored as RFC 3339 text, which covers years 0 through 9999
// without the int64 nanosecond range limit.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

var (
	_ core.Gateway     = (*Gateway)(nil)
	_ core.Initializer = (*Gateway)(nil)
	_ io.Closer        = (*Gateway)(nil)
)
