// Package fs implements the persistence gateway as a directory of YAML
// documents, optionally versioned with git.
//
// Layout:
//
//	<path>/notes/<id>.yaml          one document per note, versions oldest first
//	<path>/relations/<name>.yaml    one document per relation with its couples
//	<path>/<system dir>/            lock file, ignored by git
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aretw0/plurinotes/pkg/core"
	"github.com/aretw0/plurinotes/pkg/git"
)

const (
	NotesDir     = "notes"
	RelationsDir = "relations"
	docExt       = ".yaml"

	// DefaultSystemDir holds the vault's private files.
	DefaultSystemDir = ".plurinotes"
)

// Config holds the configuration for the vault.
type Config struct {
	Path      string
	AutoInit  bool // git init when the path is not a repository
	Gitless   bool // skip git entirely
	MustExist bool // refuse to create the vault directory
	Logger    *slog.Logger
	SystemDir string
	// ErrorHandler receives errors raised by background work (the watcher).
	ErrorHandler func(error)
}

// Vault implements core.Gateway using the filesystem and Git.
type Vault struct {
	Path   string
	git    *git.Client
	config Config

	// mu serializes read-modify-write cycles on documents
	mu            sync.RWMutex
	watcherActive bool
	commits       atomic.Int64
}

// NewVault creates a new filesystem-backed gateway.
func NewVault(config Config) *Vault {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Vault{
		Path:   config.Path,
		git:    git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger),
		config: config,
	}
}

// Initialize performs the necessary setup for the vault (mkdir, git init).
func (v *Vault) Initialize(ctx context.Context) error {
	// 1. Directory Initialization
	if v.config.MustExist {
		info, err := os.Stat(v.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", v.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", v.Path)
		}
	}
	for _, dir := range []string{NotesDir, RelationsDir, v.config.SystemDir} {
		if err := os.MkdirAll(filepath.Join(v.Path, dir), 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	// 2. Git Initialization
	if v.config.Gitless {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !v.git.IsRepo() {
		if !v.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", v.Path)
		}
		if err := v.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := v.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo {
		return v.commit(ctx, fmt.Sprintf("chore: configure %s ignore", v.config.SystemDir), ".gitignore")
	}
	return nil
}

func (v *Vault) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(v.Path, ".gitignore")
	ignoreEntry := v.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == ignoreEntry {
			return false, nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(ignoreEntry + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// commit stages paths (relative to the vault) and commits them when the
// index changed. The change reason in ctx overrides msg.
func (v *Vault) commit(ctx context.Context, msg string, paths ...string) error {
	if v.config.Gitless {
		return nil
	}

	unlock, err := v.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	var existing, removed []string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(v.Path, p)); err == nil {
			existing = append(existing, p)
		} else {
			removed = append(removed, p)
		}
	}
	if err := v.git.Add(existing...); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}
	if err := v.git.Rm(removed...); err != nil {
		return fmt.Errorf("failed to git rm: %w", err)
	}

	staged, err := v.git.HasStagedChanges()
	if err != nil {
		return err
	}
	if !staged {
		return nil
	}
	if err := v.git.Commit(core.ChangeReason(ctx, msg)); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	v.commits.Add(1)
	return nil
}

// =============================================================================
// Paths
// =============================================================================

func noteKey(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: note id %q cannot be used as a file name", core.ErrInvalidArgument, id)
	}
	return filepath.Join(NotesDir, id+docExt), nil
}

func relationKey(name string) string {
	return filepath.Join(RelationsDir, url.PathEscape(name)+docExt)
}

func (v *Vault) abs(rel string) string {
	return filepath.Join(v.Path, rel)
}

// listDocs returns the absolute paths of the YAML documents in dir, sorted.
func (v *Vault) listDocs(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(v.Path, dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != docExt || strings.HasPrefix(name, TempFilePrefix) {
			continue
		}
		paths = append(paths, filepath.Join(v.Path, dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

// =============================================================================
// Notes and versions
// =============================================================================

// LoadNotes reads every note document.
func (v *Vault) LoadNotes(ctx context.Context) ([]core.NoteRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	paths, err := v.listDocs(NotesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	records := make([]core.NoteRecord, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc noteDoc
		if err := readYAML(p, &doc); err != nil {
			return nil, err
		}
		rec, err := doc.record()
		if err != nil {
			return nil, fmt.Errorf("failed to parse note %s: %w", filepath.Base(p), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveNote writes the note record. Existing versions are kept.
func (v *Vault) SaveNote(ctx context.Context, n core.NoteRecord, isNew bool) error {
	key, err := noteKey(n.ID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var doc noteDoc
	err = readYAML(v.abs(key), &doc)
	switch {
	case isNew && err == nil:
		return fmt.Errorf("%w: note %q", core.ErrAlreadyExists, n.ID)
	case !isNew && errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: note %q", core.ErrNotFound, n.ID)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return err
	}

	doc.ID = n.ID
	doc.Title = n.Title
	doc.Kind = n.Kind.String()
	doc.State = n.State.String()
	if isNew {
		doc.CreatedAt = n.CreatedAt
	}
	if err := writeYAMLAtomic(v.abs(key), doc); err != nil {
		return fmt.Errorf("failed to write note %q: %w", n.ID, err)
	}
	msg := "update note " + n.ID
	if isNew {
		msg = "create note " + n.ID
	}
	return v.commit(ctx, msg, key)
}

// SaveVersion appends a version to the note document.
func (v *Vault) SaveVersion(ctx context.Context, noteID string, kind core.Kind, ver core.Version) error {
	if ver == nil || ver.Kind() != kind {
		return fmt.Errorf("%w: version does not match kind %s", core.ErrTypeMismatch, kind)
	}
	key, err := noteKey(noteID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var doc noteDoc
	if err := readYAML(v.abs(key), &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: note %q", core.ErrNotFound, noteID)
		}
		return err
	}
	doc.Versions = append(doc.Versions, encodeVersion(ver))
	if err := writeYAMLAtomic(v.abs(key), doc); err != nil {
		return fmt.Errorf("failed to write note %q: %w", noteID, err)
	}
	return v.commit(ctx, fmt.Sprintf("edit note %s (version %d)", noteID, len(doc.Versions)), key)
}

// DeleteNote removes the note document.
func (v *Vault) DeleteNote(ctx context.Context, n core.NoteRecord) error {
	key, err := noteKey(n.ID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.abs(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete note %q: %w", n.ID, err)
	}
	return v.commit(ctx, "delete note "+n.ID, key)
}

// =============================================================================
// Relations and couples
// =============================================================================

// LoadRelations reads every relation document.
func (v *Vault) LoadRelations(ctx context.Context) ([]core.RelationRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	paths, err := v.listDocs(RelationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	records := make([]core.RelationRecord, 0, len(paths))
	for _, p := range paths {
		var doc relationDoc
		if err := readYAML(p, &doc); err != nil {
			return nil, err
		}
		records = append(records, doc.record())
	}
	return records, nil
}

// SaveRelation writes the relation header. Existing couples are kept.
func (v *Vault) SaveRelation(ctx context.Context, r core.RelationRecord, isNew bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := relationKey(r.Name)
	doc, err := v.readRelation(key, r.Name)
	if err != nil {
		return err
	}
	if !isNew && !doc.exists {
		return fmt.Errorf("%w: relation %q", core.ErrNotFound, r.Name)
	}
	doc.Description = r.Description
	if isNew {
		doc.Oriented = r.Oriented
	}
	return v.writeRelation(ctx, key, doc.relationDoc, "update relation "+r.Name)
}

// SaveCouple adds the couple to the relation document or updates its label.
func (v *Vault) SaveCouple(ctx context.Context, relation string, c core.CoupleRecord, isNew bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := relationKey(relation)
	doc, err := v.readRelation(key, relation)
	if err != nil {
		return err
	}
	cd := coupleDoc{Ascendant: c.Ascendant, Descendant: c.Descendant, Label: c.Label}
	i := doc.indexOf(c.Ascendant, c.Descendant)
	switch {
	case i >= 0:
		doc.Couples[i] = cd
	case isNew:
		doc.Couples = append(doc.Couples, cd)
	default:
		return fmt.Errorf("%w: couple (%s, %s) in %q", core.ErrNotFound, c.Ascendant, c.Descendant, relation)
	}
	return v.writeRelation(ctx, key, doc.relationDoc, fmt.Sprintf("link %s -> %s (%s)", c.Ascendant, c.Descendant, relation))
}

// DeleteCouple removes the couple from the relation document.
func (v *Vault) DeleteCouple(ctx context.Context, relation string, c core.CoupleRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := relationKey(relation)
	doc, err := v.readRelation(key, relation)
	if err != nil {
		return err
	}
	i := doc.indexOf(c.Ascendant, c.Descendant)
	if i < 0 {
		return nil
	}
	doc.Couples = slices.Delete(doc.Couples, i, i+1)
	return v.writeRelation(ctx, key, doc.relationDoc, fmt.Sprintf("unlink %s -> %s (%s)", c.Ascendant, c.Descendant, relation))
}

type loadedRelation struct {
	relationDoc
	exists bool
}

// readRelation loads a relation document, or an empty one named name.
func (v *Vault) readRelation(key, name string) (loadedRelation, error) {
	var doc relationDoc
	err := readYAML(v.abs(key), &doc)
	if errors.Is(err, os.ErrNotExist) {
		return loadedRelation{relationDoc: relationDoc{Name: name, Oriented: name == core.ReferenceRelation}}, nil
	}
	if err != nil {
		return loadedRelation{}, err
	}
	return loadedRelation{relationDoc: doc, exists: true}, nil
}

func (v *Vault) writeRelation(ctx context.Context, key string, doc relationDoc, msg string) error {
	if err := writeYAMLAtomic(v.abs(key), doc); err != nil {
		return fmt.Errorf("failed to write relation %q: %w", doc.Name, err)
	}
	return v.commit(ctx, msg, key)
}

var (
	_ core.Gateway     = (*Vault)(nil)
	_ core.Initializer = (*Vault)(nil)
	_ core.Watchable   = (*Vault)(nil)
)

// Log returns the last n change messages recorded for the note, newest
// first. A gitless vault has no log.
func (v *Vault) Log(noteID string, n int) ([]string, error) {
	if v.config.Gitless {
		return nil, nil
	}
	key, err := noteKey(noteID)
	if err != nil {
		return nil, err
	}
	return v.git.Log(n, filepath.ToSlash(key))
}
