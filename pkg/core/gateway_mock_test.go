package core_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aretw0/plurinotes/pkg/core"
)

// MockGateway implements core.Gateway in memory and records every call.
type MockGateway struct {
	mu        sync.Mutex
	notes     map[string]core.NoteRecord
	relations map[string]core.RelationRecord
	calls     []string

	// failOn makes the named operation fail.
	failOn map[string]bool
}

var errBoom = errors.New("boom")

func NewMockGateway() *MockGateway {
	return &MockGateway{
		notes:     make(map[string]core.NoteRecord),
		relations: make(map[string]core.RelationRecord),
		failOn:    make(map[string]bool),
	}
}

func (m *MockGateway) record(op string) error {
	m.calls = append(m.calls, op)
	if m.failOn[op] {
		return errBoom
	}
	return nil
}

func (m *MockGateway) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *MockGateway) LoadNotes(ctx context.Context) ([]core.NoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.NoteRecord
	for _, n := range m.notes {
		n.Versions = append([]core.Version(nil), n.Versions...)
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockGateway) LoadRelations(ctx context.Context) ([]core.RelationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RelationRecord
	for _, r := range m.relations {
		r.Couples = append([]core.CoupleRecord(nil), r.Couples...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockGateway) SaveNote(ctx context.Context, n core.NoteRecord, isNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveNote"); err != nil {
		return err
	}
	if prev, ok := m.notes[n.ID]; ok {
		n.Versions = prev.Versions
	}
	m.notes[n.ID] = n
	return nil
}

func (m *MockGateway) SaveVersion(ctx context.Context, noteID string, kind core.Kind, v core.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveVersion"); err != nil {
		return err
	}
	n, ok := m.notes[noteID]
	if !ok {
		return errors.New("unknown note")
	}
	n.Versions = append(n.Versions, v)
	m.notes[noteID] = n
	return nil
}

func (m *MockGateway) DeleteNote(ctx context.Context, n core.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteNote"); err != nil {
		return err
	}
	delete(m.notes, n.ID)
	return nil
}

func (m *MockGateway) SaveRelation(ctx context.Context, r core.RelationRecord, isNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveRelation"); err != nil {
		return err
	}
	if prev, ok := m.relations[r.Name]; ok {
		r.Couples = prev.Couples
	}
	m.relations[r.Name] = r
	return nil
}

func (m *MockGateway) SaveCouple(ctx context.Context, relation string, c core.CoupleRecord, isNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveCouple"); err != nil {
		return err
	}
	r := m.relations[relation]
	r.Name = relation
	for i, existing := range r.Couples {
		if existing.Ascendant == c.Ascendant && existing.Descendant == c.Descendant {
			r.Couples[i] = c
			m.relations[relation] = r
			return nil
		}
	}
	r.Couples = append(r.Couples, c)
	m.relations[relation] = r
	return nil
}

func (m *MockGateway) DeleteCouple(ctx context.Context, relation string, c core.CoupleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteCouple"); err != nil {
		return err
	}
	r := m.relations[relation]
	for i, existing := range r.Couples {
		if existing.Ascendant == c.Ascendant && existing.Descendant == c.Descendant {
			r.Couples = append(r.Couples[:i], r.Couples[i+1:]...)
			break
		}
	}
	m.relations[relation] = r
	return nil
}
