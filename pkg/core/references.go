package core

import (
	"context"
	"errors"
	"regexp"
	"slices"
)

// refPattern matches \ref{id} markers. A marker without its closing brace is
// not a reference.
var refPattern = regexp.MustCompile(`\\ref\{(\w+)\}`)

// ExtractReferences returns the distinct ids referenced from texts, sorted.
func ExtractReferences(texts ...string) []string {
	seen := make(map[string]struct{})
	for _, t := range texts {
		for _, m := range refPattern.FindAllStringSubmatch(t, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SyncReport describes what a reference synchronization changed.
type SyncReport struct {
	// Added and Removed hold the target ids of created and deleted
	// Reference couples.
	Added   []string
	Removed []string
	// Candidates are archived notes that lost their last referencer. The
	// caller decides whether to delete them.
	Candidates []string
}

// Changed reports whether the synchronization touched the Reference relation.
func (r SyncReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// syncReferences reconciles the Reference couples where n is the ascendant
// with the markers found in its title and latest version. The caller holds
// s.mu.
func (s *Store) syncReferences(ctx context.Context, n *Note) (SyncReport, error) {
	var report SyncReport
	ref := s.referenceRelation()

	texts := []string{n.Title()}
	if v, ok := n.Latest(); ok {
		texts = append(texts, textFields(v)...)
	}
	wanted := make(map[string]bool)
	for _, id := range ExtractReferences(texts...) {
		wanted[id] = true
	}

	current := make(map[string]bool)
	for _, p := range ref.CouplesInvolving(n.ID(), SideAscendant) {
		current[p.ID] = true
	}

	var errs []error

	for _, id := range sortedKeys(wanted) {
		if current[id] || id == "" || id == n.ID() {
			continue
		}
		target, ok := s.notes[id]
		if !ok {
			continue
		}
		c, err := ref.addCouple(n, target, "")
		if err != nil {
			continue
		}
		report.Added = append(report.Added, id)
		errs = append(errs, s.persisted("save reference couple", s.gw.SaveCouple(ctx, ref.Name(), c.record(), true)))
	}

	for _, id := range sortedKeys(current) {
		if wanted[id] {
			continue
		}
		target := s.notes[id]
		c, err := ref.removeCouple(n, target)
		if err != nil {
			continue
		}
		report.Removed = append(report.Removed, id)
		errs = append(errs, s.persisted("delete reference couple", s.gw.DeleteCouple(ctx, ref.Name(), c.record())))

		if target.State() == StateArchived && len(ref.CouplesInvolving(id, SideDescendant)) == 0 {
			report.Candidates = append(report.Candidates, id)
		}
	}

	if report.Changed() {
		s.logger.Debug("references synchronized", "note", n.ID(), "added", report.Added, "removed", report.Removed, "candidates", report.Candidates)
	}
	return report, errors.Join(errs...)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
