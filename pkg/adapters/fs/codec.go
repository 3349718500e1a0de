package fs

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/plurinotes/pkg/core"
)

// noteDoc is the on-disk form of a note: notes/<id>.yaml.
type noteDoc struct {
	ID        string       `yaml:"id"`
	Title     string       `yaml:"title"`
	Kind      string       `yaml:"kind"`
	CreatedAt time.Time    `yaml:"created_at"`
	State     string       `yaml:"state"`
	Versions  []versionDoc `yaml:"versions"`
}

// versionDoc holds the union of every version field; only the fields of the
// note's kind are written.
type versionDoc struct {
	ModifiedAt  time.Time  `yaml:"modified_at"`
	Text        string     `yaml:"text,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Filename    string     `yaml:"filename,omitempty"`
	Action      string     `yaml:"action,omitempty"`
	Status      string     `yaml:"status,omitempty"`
	Priority    int        `yaml:"priority,omitempty"`
	Deadline    *time.Time `yaml:"deadline,omitempty"`
}

// relationDoc is the on-disk form of a relation: relations/<name>.yaml.
type relationDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Oriented    bool        `yaml:"oriented"`
	Couples     []coupleDoc `yaml:"couples"`
}

type coupleDoc struct {
	Ascendant  string `yaml:"ascendant"`
	Descendant string `yaml:"descendant"`
	Label      string `yaml:"label,omitempty"`
}

func encodeVersion(v core.Version) versionDoc {
	switch v := v.(type) {
	case core.Article:
		return versionDoc{ModifiedAt: v.Modified, Text: v.Text}
	case core.Media:
		return versionDoc{ModifiedAt: v.Modified, Description: v.Description, Filename: v.Filename}
	case core.Task:
		doc := versionDoc{ModifiedAt: v.Modified, Action: v.Action, Status: v.Status.String(), Priority: v.Priority}
		if v.HasDeadline() {
			d := v.Deadline
			doc.Deadline = &d
		}
		return doc
	default:
		return versionDoc{}
	}
}

func (d versionDoc) decode(kind core.Kind) (core.Version, error) {
	attrs := core.Attributes{
		core.AttrText:        d.Text,
		core.AttrDescription: d.Description,
		core.AttrFilename:    d.Filename,
		core.AttrAction:      d.Action,
		core.AttrPriority:    d.Priority,
		core.AttrDeadline:    d.Deadline,
	}
	if d.Status != "" {
		attrs[core.AttrStatus] = d.Status
	}
	return core.BuildVersion(kind, attrs, d.ModifiedAt)
}

func (d noteDoc) record() (core.NoteRecord, error) {
	kind, err := core.ParseKind(d.Kind)
	if err != nil {
		return core.NoteRecord{}, err
	}
	state, err := core.ParseState(d.State)
	if err != nil {
		return core.NoteRecord{}, err
	}
	rec := core.NoteRecord{ID: d.ID, Title: d.Title, Kind: kind, CreatedAt: d.CreatedAt, State: state}
	for i, vd := range d.Versions {
		v, err := vd.decode(kind)
		if err != nil {
			return core.NoteRecord{}, fmt.Errorf("version %d: %w", i, err)
		}
		rec.Versions = append(rec.Versions, v)
	}
	return rec, nil
}

func (d relationDoc) record() core.RelationRecord {
	rec := core.RelationRecord{Name: d.Name, Description: d.Description, Oriented: d.Oriented}
	for _, c := range d.Couples {
		rec.Couples = append(rec.Couples, core.CoupleRecord{Ascendant: c.Ascendant, Descendant: c.Descendant, Label: c.Label})
	}
	return rec
}

// indexOf finds the couple (asc, desc) exactly as stored.
func (d relationDoc) indexOf(asc, desc string) int {
	for i, c := range d.Couples {
		if c.Ascendant == asc && c.Descendant == desc {
			return i
		}
	}
	return -1
}

func marshalYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalYAML(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	return nil
}
