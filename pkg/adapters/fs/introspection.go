package fs

import (
	"github.com/aretw0/introspection"
)

// VaultState exposes internal state for observability.
type VaultState struct {
	Path          string `json:"path"`
	SystemDir     string `json:"system_dir"`
	Gitless       bool   `json:"gitless"`
	Notes         int    `json:"notes"`
	Relations     int    `json:"relations"`
	Commits       int64  `json:"commits"`
	WatcherActive bool   `json:"watcher_active"`
}

// State implements introspection.Introspectable.
func (v *Vault) State() any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	notes, _ := v.listDocs(NotesDir)
	relations, _ := v.listDocs(RelationsDir)
	return VaultState{
		Path:          v.Path,
		SystemDir:     v.config.SystemDir,
		Gitless:       v.config.Gitless,
		Notes:         len(notes),
		Relations:     len(relations),
		Commits:       v.commits.Load(),
		WatcherActive: v.watcherActive,
	}
}

// ComponentType implements introspection.Component.
func (v *Vault) ComponentType() string {
	return "vault"
}

var _ introspection.Introspectable = (*Vault)(nil)
var _ introspection.Component = (*Vault)(nil)
