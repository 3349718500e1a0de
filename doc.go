// Package plurinotes is the Composition Root for the PluriNotes note keeper.
//
// It connects the domain core (pkg/core: notes, version history, relations,
// the reference synchronizer and the lifecycle machine) with the persistence
// gateways (SQLite and a YAML file vault) using the Hexagonal Architecture
// pattern.
//
// Features:
//
//   - **Typed Versions**: Articles, media and tasks keep an append-only history.
//   - **Reference Graph**: `\ref{id}` markers in note text are reconciled into
//     the reserved Reference relation on every edit.
//   - **Safe Lifecycle**: Referenced notes are archived instead of trashed;
//     archived notes that lose their last referencer are reported as
//     deletion candidates.
//   - **Undo/Redo**: Archive and restore are recorded as commands (pkg/command).
//   - **Pluggable Storage**: SQLite by default, or a git-versioned YAML vault.
//
// Usage:
//
//	sess, err := plurinotes.Open(ctx, "./notes",
//		plurinotes.WithAutoInit(true),
//		plurinotes.WithLogger(logger),
//	)
//	defer sess.Close(ctx)
//
//	note, err := sess.Store.CreateNote(ctx, plurinotes.NoteSpec{
//		ID:   "A1",
//		Kind: plurinotes.KindArticle,
//	})
package plurinotes
