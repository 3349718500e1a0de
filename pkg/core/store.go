package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Store is the registry that owns every Note and Relation. It enforces the
// lifecycle machine, keeps the per-kind active counters exact and writes
// every mutation through to its Gateway.
//
// All operations are serialized by a single mutex. Persistence failures are
// returned after the in-memory mutation has completed; nothing is rolled back.
type Store struct {
	gw     Gateway
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	notes     map[string]*Note
	relations map[string]*Relation
	active    map[Kind]int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation traces and persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp new notes and versions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store backed by gw. A nil gateway keeps
// everything in memory.
func NewStore(gw Gateway, opts ...Option) *Store {
	if gw == nil {
		gw = memoryGateway{}
	}
	s := &Store{
		gw:        gw,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		notes:     make(map[string]*Note),
		relations: make(map[string]*Relation),
		active:    make(map[Kind]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.relations[ReferenceRelation] = newRelation(ReferenceRelation, "", true)
	return s
}

// Gateway returns the persistence gateway the store writes to.
func (s *Store) Gateway() Gateway { return s.gw }

// Load replaces the store content with everything the gateway holds and makes
// sure the Reference relation exists, persisting it when it was missing.
func (s *Store) Load(ctx context.Context) error {
	noteRecs, err := s.gw.LoadNotes(ctx)
	if err != nil {
		return persistenceError("load notes", err)
	}
	relRecs, err := s.gw.LoadRelations(ctx)
	if err != nil {
		return persistenceError("load relations", err)
	}

	notes := make(map[string]*Note, len(noteRecs))
	active := make(map[Kind]int)
	for _, rec := range noteRecs {
		n, err := s.noteFromRecord(rec)
		if err != nil {
			return err
		}
		if _, dup := notes[n.ID()]; dup {
			return fmt.Errorf("%w: note %q loaded twice", ErrAlreadyExists, n.ID())
		}
		notes[n.ID()] = n
		if n.State() == StateActive {
			active[n.Kind()]++
		}
	}

	relations := make(map[string]*Relation, len(relRecs)+1)
	for _, rec := range relRecs {
		r := newRelation(rec.Name, rec.Description, rec.Oriented)
		for _, c := range rec.Couples {
			a, b := notes[c.Ascendant], notes[c.Descendant]
			if a == nil || b == nil {
				s.logger.Warn("skipping couple with unknown note", "relation", rec.Name, "ascendant", c.Ascendant, "descendant", c.Descendant)
				continue
			}
			if _, err := r.addCouple(a, b, c.Label); err != nil {
				s.logger.Warn("skipping couple", "relation", rec.Name, "error", err)
			}
		}
		relations[r.Name()] = r
	}

	var persistErr error
	if _, ok := relations[ReferenceRelation]; !ok {
		r := newRelation(ReferenceRelation, "", true)
		relations[ReferenceRelation] = r
		persistErr = s.persisted("save reference relation", s.gw.SaveRelation(ctx, r.record(false), true))
	}

	s.mu.Lock()
	s.notes = notes
	s.relations = relations
	s.active = active
	s.mu.Unlock()

	s.logger.Debug("store loaded", "notes", len(notes), "relations", len(relations))
	return persistErr
}

func (s *Store) noteFromRecord(rec NoteRecord) (*Note, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: persisted note without id", ErrInvalidArgument)
	}
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("%w: note %q has kind %s", ErrTypeMismatch, rec.ID, rec.Kind)
	}
	if !rec.State.Valid() {
		return nil, fmt.Errorf("%w: note %q has state %d", ErrInvalidArgument, rec.ID, int(rec.State))
	}
	n := newNote(rec.ID, rec.Title, rec.Kind, rec.CreatedAt, rec.State)
	for _, v := range rec.Versions {
		if v == nil || v.Kind() != rec.Kind {
			return nil, fmt.Errorf("%w: version of note %q does not match kind %s", ErrTypeMismatch, rec.ID, rec.Kind)
		}
		n.appendVersion(v)
	}
	if n.Len() == 0 {
		// a note always has a history; rebuild an empty first version
		v, err := BuildVersion(n.kind, Attributes{}, rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		n.appendVersion(v)
		s.logger.Warn("note loaded without versions", "note", rec.ID)
	}
	return n, nil
}

// NoteSpec describes a note to create. A zero CreatedAt means now; a zero
// State means Active. Attributes seed the initial version.
type NoteSpec struct {
	ID         string
	Title      string
	Kind       Kind
	CreatedAt  time.Time
	State      State
	Attributes Attributes
}

// CreateNote registers a new note, persists it and creates its initial
// version as a live edit, so references in the title or the initial content
// are synchronized.
func (s *Store) CreateNote(ctx context.Context, spec NoteSpec) (*Note, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return nil, fmt.Errorf("%w: note id cannot be empty", ErrInvalidArgument)
	}
	if !spec.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown note kind %s", ErrInvalidArgument, spec.Kind)
	}
	if !spec.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %d", ErrInvalidArgument, int(spec.State))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[spec.ID]; ok {
		return nil, fmt.Errorf("%w: note %q", ErrAlreadyExists, spec.ID)
	}

	now := s.now()
	createdAt := spec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	// the initial version is validated before the note becomes visible
	n := newNote(spec.ID, spec.Title, spec.Kind, createdAt, spec.State)
	v, err := n.createVersion(spec.Attributes, now)
	if err != nil {
		return nil, err
	}

	s.notes[n.ID()] = n
	if n.State() == StateActive {
		s.active[n.Kind()]++
	}
	s.logger.Debug("note created", "note", n.ID(), "kind", n.Kind(), "state", n.State())

	errs := []error{
		s.persisted("save note", s.gw.SaveNote(ctx, n.record(false), true)),
		s.persisted("save version", s.gw.SaveVersion(ctx, n.ID(), n.Kind(), v)),
	}
	_, err = s.syncReferences(ctx, n)
	errs = append(errs, err)
	return n, errors.Join(errs...)
}

// Note returns the note with the given id.
func (s *Store) Note(id string) (*Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}

// CreateVersion records a live edit of the note: it builds the new version,
// persists it, then synchronizes the note's references. The returned report
// carries the deletion candidates for the caller to act on.
func (s *Store) CreateVersion(ctx context.Context, id string, attrs Attributes) (Version, SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return nil, SyncReport{}, err
	}
	v, err := n.createVersion(attrs, s.now())
	if err != nil {
		return nil, SyncReport{}, err
	}
	s.logger.Debug("version created", "note", id, "versions", n.Len())

	persistErr := s.persisted("save version", s.gw.SaveVersion(ctx, n.ID(), n.Kind(), v))
	report, syncErr := s.syncReferences(ctx, n)
	return v, report, errors.Join(persistErr, syncErr)
}

// SyncReferences runs the reference synchronizer for one note.
func (s *Store) SyncReferences(ctx context.Context, id string) (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return SyncReport{}, err
	}
	return s.syncReferences(ctx, n)
}

// SetTitle renames a note, persists the note record and resynchronizes its
// references since titles may carry markers.
func (s *Store) SetTitle(ctx context.Context, id, title string) (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return SyncReport{}, err
	}
	n.setTitle(title)
	persistErr := s.persisted("save note", s.gw.SaveNote(ctx, n.record(false), false))
	report, syncErr := s.syncReferences(ctx, n)
	return report, errors.Join(persistErr, syncErr)
}

// ChangeState moves a note along the lifecycle machine. Moving to the current
// state is a no-op; moves outside the machine fail with ErrInvalidTransition.
func (s *Store) ChangeState(ctx context.Context, id string, to State) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown state %d", ErrInvalidArgument, int(to))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.changeState(ctx, n, to)
}

// changeState is called with s.mu held.
func (s *Store) changeState(ctx context.Context, n *Note, to State) error {
	from := n.State()
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s for note %q", ErrInvalidTransition, from, to, n.ID())
	}
	n.setState(to)
	s.active[n.Kind()] += activeDelta(from, to)
	s.logger.Debug("state changed", "note", n.ID(), "from", from, "to", to)

	return s.persisted("save note", s.gw.SaveNote(ctx, n.record(false), false))
}

// DeleteNote applies the deletion policy and returns the state the note ends
// in. A note still referenced by another note is archived. Any other note is
// detached from every relation and moved to the trash. Trashed notes are left
// untouched.
func (s *Store) DeleteNote(ctx context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(id)
	if err != nil {
		return StateActive, err
	}
	if n.State() == StateTrashed {
		return StateTrashed, nil
	}

	if len(s.referenceRelation().CouplesInvolving(id, SideDescendant)) > 0 {
		s.logger.Debug("note is referenced, archiving instead of deleting", "note", id)
		err := s.changeState(ctx, n, StateArchived)
		return n.State(), err
	}

	errs := s.detach(ctx, n)
	errs = append(errs, s.changeState(ctx, n, StateTrashed))
	return n.State(), errors.Join(errs...)
}

// detach deletes every couple involving n across all relations. Called with
// s.mu held.
func (s *Store) detach(ctx context.Context, n *Note) []error {
	var errs []error
	for _, name := range s.relationNames() {
		r := s.relations[name]
		for _, c := range r.removeInvolving(n) {
			errs = append(errs, s.persisted("delete couple", s.gw.DeleteCouple(ctx, name, c.record())))
		}
	}
	return errs
}

// TrashReport describes what EmptyTrash removed.
type TrashReport struct {
	Purged int
	// Candidates are archived notes whose last referencer was purged. A note
	// trashed through ChangeState keeps its outgoing references until then.
	Candidates []string
}

// EmptyTrash purges every trashed note, and any couple still attached to it,
// from the store and the gateway. The sweep always completes; gateway
// failures are joined into the returned error.
func (s *Store) EmptyTrash(ctx context.Context) (TrashReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		report  TrashReport
		errs    []error
		targets = make(map[string]bool)
	)
	ref := s.referenceRelation()
	for _, id := range s.noteIDs() {
		n := s.notes[id]
		if n.State() != StateTrashed {
			continue
		}
		for _, p := range ref.CouplesInvolving(id, SideAscendant) {
			targets[p.ID] = true
		}
		errs = append(errs, s.detach(ctx, n)...)
		errs = append(errs, s.persisted("delete note", s.gw.DeleteNote(ctx, n.record(false))))
		delete(s.notes, id)
		report.Purged++
	}
	for _, id := range sortedKeys(targets) {
		n, ok := s.notes[id]
		if !ok || n.State() != StateArchived {
			continue
		}
		if len(ref.CouplesInvolving(id, SideDescendant)) == 0 {
			report.Candidates = append(report.Candidates, id)
		}
	}
	if report.Purged > 0 {
		s.logger.Debug("trash emptied", "purged", report.Purged, "candidates", report.Candidates)
	}
	return report, errors.Join(errs...)
}

// CreateRelation registers and persists a new relation.
func (s *Store) CreateRelation(ctx context.Context, name, description string, oriented bool) (*Relation, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: relation name cannot be empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relations[name]; ok {
		return nil, fmt.Errorf("%w: relation %q", ErrAlreadyExists, name)
	}
	r := newRelation(name, description, oriented)
	s.relations[name] = r
	s.logger.Debug("relation created", "relation", name, "oriented", oriented)

	return r, s.persisted("save relation", s.gw.SaveRelation(ctx, r.record(false), true))
}

// Relation returns the relation with the given name.
func (s *Store) Relation(name string) (*Relation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[name]
	return r, ok
}

// SetRelationDescription updates and persists a relation's description.
func (s *Store) SetRelationDescription(ctx context.Context, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.relations[name]
	if !ok {
		return fmt.Errorf("%w: relation %q", ErrNotFound, name)
	}
	r.setDescription(description)
	return s.persisted("save relation", s.gw.SaveRelation(ctx, r.record(false), false))
}

// CreateCouple adds the couple (a, b) to a user relation and persists it.
// Both notes must exist. Reference couples are managed by the synchronizer.
func (s *Store) CreateCouple(ctx context.Context, relation, a, b, label string) (Couple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.userRelation(relation)
	if err != nil {
		return Couple{}, err
	}
	asc, desc := s.notes[a], s.notes[b]
	if asc == nil || desc == nil {
		return Couple{}, fmt.Errorf("%w: couple (%q, %q) needs two existing notes", ErrInvalidArgument, a, b)
	}
	c, err := r.addCouple(asc, desc, label)
	if err != nil {
		return Couple{}, err
	}
	s.logger.Debug("couple created", "relation", relation, "ascendant", a, "descendant", b)
	return c, s.persisted("save couple", s.gw.SaveCouple(ctx, relation, c.record(), true))
}

// DeleteCouple removes the couple (a, b) from a user relation.
func (s *Store) DeleteCouple(ctx context.Context, relation, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.userRelation(relation)
	if err != nil {
		return err
	}
	c, err := r.removeCouple(s.notes[a], s.notes[b])
	if err != nil {
		return err
	}
	s.logger.Debug("couple deleted", "relation", relation, "ascendant", a, "descendant", b)
	return s.persisted("delete couple", s.gw.DeleteCouple(ctx, relation, c.record()))
}

// SetCoupleLabel relabels the couple (a, b) of a user relation.
func (s *Store) SetCoupleLabel(ctx context.Context, relation, a, b, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.userRelation(relation)
	if err != nil {
		return err
	}
	c, err := r.setLabel(s.notes[a], s.notes[b], label)
	if err != nil {
		return err
	}
	return s.persisted("save couple", s.gw.SaveCouple(ctx, relation, c.record(), false))
}

// ActiveCount returns the number of active notes of kind k.
func (s *Store) ActiveCount(k Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[k]
}

// ActiveTotal returns the number of active notes of every kind.
func (s *Store) ActiveTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, k := range Kinds {
		total += s.active[k]
	}
	return total
}

// RowCount is the largest per-kind active count: the number of rows of a
// table listing one kind per column.
func (s *Store) RowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := 0
	for _, k := range Kinds {
		rows = max(rows, s.active[k])
	}
	return rows
}

// TrashCount returns the number of trashed notes.
func (s *Store) TrashCount() int {
	return len(s.NotesInState(StateTrashed))
}

// Notes returns every note sorted by id.
func (s *Store) Notes() []*Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Note, 0, len(s.notes))
	for _, id := range s.noteIDs() {
		out = append(out, s.notes[id])
	}
	return out
}

// NotesInState returns the notes in state st sorted by id.
func (s *Store) NotesInState(st State) []*Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Note
	for _, id := range s.noteIDs() {
		if n := s.notes[id]; n.State() == st {
			out = append(out, n)
		}
	}
	return out
}

// Relations returns every relation sorted by name.
func (s *Store) Relations() []*Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Relation, 0, len(s.relations))
	for _, name := range s.relationNames() {
		out = append(out, s.relations[name])
	}
	return out
}

// References returns the ids the note references through \ref markers.
func (s *Store) References(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return peerIDs(s.referenceRelation().CouplesInvolving(id, SideAscendant))
}

// ReferencedBy returns the ids of the notes referencing the note.
func (s *Store) ReferencedBy(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return peerIDs(s.referenceRelation().CouplesInvolving(id, SideDescendant))
}

func peerIDs(peers []Peer) []string {
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) lookup(id string) (*Note, error) {
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("%w: note %q", ErrNotFound, id)
	}
	return n, nil
}

func (s *Store) userRelation(name string) (*Relation, error) {
	if name == ReferenceRelation {
		return nil, fmt.Errorf("%w: %q", ErrReservedRelation, name)
	}
	r, ok := s.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: relation %q", ErrNotFound, name)
	}
	return r, nil
}

// referenceRelation returns the Reference relation. NewStore and Load both
// guarantee it exists, and relations are never removed.
func (s *Store) referenceRelation() *Relation {
	return s.relations[ReferenceRelation]
}

func (s *Store) noteIDs() []string {
	ids := make([]string, 0, len(s.notes))
	for id := range s.notes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) relationNames() []string {
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) persisted(op string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Warn("persistence failed", "op", op, "error", err)
	return persistenceError(op, err)
}

// memoryGateway persists nothing.
type memoryGateway struct{}

func (memoryGateway) LoadNotes(context.Context) ([]NoteRecord, error)              { return nil, nil }
func (memoryGateway) LoadRelations(context.Context) ([]RelationRecord, error)      { return nil, nil }
func (memoryGateway) SaveNote(context.Context, NoteRecord, bool) error             { return nil }
func (memoryGateway) SaveVersion(context.Context, string, Kind, Version) error     { return nil }
func (memoryGateway) DeleteNote(context.Context, NoteRecord) error                 { return nil }
func (memoryGateway) SaveRelation(context.Context, RelationRecord, bool) error     { return nil }
func (memoryGateway) SaveCouple(context.Context, string, CoupleRecord, bool) error { return nil }
func (memoryGateway) DeleteCouple(context.Context, string, CoupleRecord) error     { return nil }
