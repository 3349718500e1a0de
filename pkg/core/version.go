package core

import (
	"fmt"
	"time"
)

// Version is an immutable, timestamped snapshot of a note's content.
// It is a closed set: Article, Media and Task are its only implementations.
type Version interface {
	Kind() Kind
	ModifiedAt() time.Time
	isVersion()
}

// Article is the content of an article note.
type Article struct {
	Modified time.Time
	Text     string
}

// Media is the content of a media note: a description and the file it points to.
type Media struct {
	Modified    time.Time
	Description string
	Filename    string
}

// Task is the content of a task note. A zero Deadline means no deadline.
type Task struct {
	Modified time.Time
	Action   string
	Status   TaskStatus
	Priority int
	Deadline time.Time
}

func (Article) Kind() Kind { return KindArticle }
func (Media) Kind() Kind   { return KindMedia }
func (Task) Kind() Kind    { return KindTask }

func (a Article) ModifiedAt() time.Time { return a.Modified }
func (m Media) ModifiedAt() time.Time   { return m.Modified }
func (t Task) ModifiedAt() time.Time    { return t.Modified }

func (Article) isVersion() {}
func (Media) isVersion()   {}
func (Task) isVersion()    {}

// HasDeadline reports whether the task carries a deadline.
func (t Task) HasDeadline() bool { return !t.Deadline.IsZero() }

// Attribute keys understood by BuildVersion.
const (
	AttrModifiedAt  = "modified_at"
	AttrText        = "text"
	AttrDescription = "description"
	AttrFilename    = "filename"
	AttrAction      = "action"
	AttrStatus      = "status"
	AttrPriority    = "priority"
	AttrDeadline    = "deadline"
)

// Attributes is the loosely typed attribute set a version is built from.
// Values may come from a form, a YAML document or a database row, so the
// accessors accept the handful of representations those produce.
type Attributes map[string]any

// BuildVersion creates the variant matching kind from attrs, stamped with
// modified. It fails with ErrTypeMismatch when kind is not a known kind.
func BuildVersion(kind Kind, attrs Attributes, modified time.Time) (Version, error) {
	switch kind {
	case KindArticle:
		text, err := attrs.GetString(AttrText)
		if err != nil {
			return nil, err
		}
		return Article{Modified: modified, Text: text}, nil

	case KindMedia:
		desc, err := attrs.GetString(AttrDescription)
		if err != nil {
			return nil, err
		}
		file, err := attrs.GetString(AttrFilename)
		if err != nil {
			return nil, err
		}
		return Media{Modified: modified, Description: desc, Filename: file}, nil

	case KindTask:
		action, err := attrs.GetString(AttrAction)
		if err != nil {
			return nil, err
		}
		status, err := attrs.status()
		if err != nil {
			return nil, err
		}
		priority, err := attrs.GetInt(AttrPriority)
		if err != nil {
			return nil, err
		}
		if priority < 0 || priority > MaxPriority {
			return nil, fmt.Errorf("%w: priority %d out of range 0-%d", ErrInvalidArgument, priority, MaxPriority)
		}
		deadline, err := attrs.GetTime(AttrDeadline)
		if err != nil {
			return nil, err
		}
		return Task{Modified: modified, Action: action, Status: status, Priority: priority, Deadline: deadline}, nil

	default:
		return nil, fmt.Errorf("%w: cannot build a version for kind %s", ErrTypeMismatch, kind)
	}
}

// AttributesOf returns the attribute set that rebuilds v, including its
// modification time.
func AttributesOf(v Version) Attributes {
	switch v := v.(type) {
	case Article:
		return Attributes{AttrModifiedAt: v.Modified, AttrText: v.Text}
	case Media:
		return Attributes{AttrModifiedAt: v.Modified, AttrDescription: v.Description, AttrFilename: v.Filename}
	case Task:
		attrs := Attributes{
			AttrModifiedAt: v.Modified,
			AttrAction:     v.Action,
			AttrStatus:     v.Status,
			AttrPriority:   v.Priority,
		}
		if v.HasDeadline() {
			attrs[AttrDeadline] = v.Deadline
		}
		return attrs
	default:
		return Attributes{}
	}
}

// textFields returns the free-text fields of v scanned for \ref{} markers.
func textFields(v Version) []string {
	switch v := v.(type) {
	case Article:
		return []string{v.Text}
	case Media:
		return []string{v.Description, v.Filename}
	case Task:
		return []string{v.Action}
	default:
		return nil
	}
}

// GetString returns the string stored under key. A missing key yields "".
func (a Attributes) GetString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("%w: attribute %q must be a string, got %T", ErrInvalidArgument, key, v)
}

// GetInt returns the integer stored under key. A missing key yields 0.
func (a Attributes) GetInt(key string) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: attribute %q must be an integer, got %v", ErrInvalidArgument, key, n)
		}
		return int(n), nil
	case TaskStatus:
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: attribute %q must be an integer, got %T", ErrInvalidArgument, key, v)
}

// GetTime returns the timestamp stored under key. Strings are parsed as RFC 3339.
// A missing key yields the zero time.
func (a Attributes) GetTime(key string) (time.Time, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return *t, nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: attribute %q: %v", ErrInvalidArgument, key, err)
		}
		return parsed, nil
	case int64:
		return time.Unix(0, t), nil
	}
	return time.Time{}, fmt.Errorf("%w: attribute %q must be a time, got %T", ErrInvalidArgument, key, v)
}

func (a Attributes) status() (TaskStatus, error) {
	v, ok := a[AttrStatus]
	if !ok || v == nil {
		return StatusInProgress, nil
	}
	var status TaskStatus
	switch s := v.(type) {
	case TaskStatus:
		status = s
	case string:
		return ParseTaskStatus(s)
	default:
		n, err := a.GetInt(AttrStatus)
		if err != nil {
			return StatusInProgress, err
		}
		status = TaskStatus(n)
	}
	if !status.Valid() {
		return StatusInProgress, fmt.Errorf("%w: unknown task status %d", ErrInvalidArgument, int(status))
	}
	return status, nil
}
