package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes/pkg/command"
	"github.com/aretw0/plurinotes/pkg/core"
)

var restoreFromTrash bool

var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive an active note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "archive note "+args[0])
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if err := sess.Store.ChangeState(ctx, args[0], core.StateArchived); err != nil {
			fatal("Failed to archive note", err)
		}
		fmt.Printf("Archived %s\n", args[0])
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Bring an archived note back (or a trashed one with --from-trash)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "restore note "+args[0])
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		n, ok := sess.Store.Note(args[0])
		if !ok {
			fatal("Failed to restore note", fmt.Errorf("%w: %s", core.ErrNotFound, args[0]))
		}
		c := command.Restore(n.ID())
		if n.State() == core.StateTrashed {
			if !restoreFromTrash {
				fatal("Failed to restore note", fmt.Errorf("%s is in the trash, use --from-trash", n.ID()))
			}
			c.From = core.StateTrashed
		}
		if n.State() != c.From {
			fatal("Failed to restore note", fmt.Errorf("%w: %s is %s", core.ErrInvalidTransition, n.ID(), n.State()))
		}

		if _, err := c.Apply(ctx, sess.Store); err != nil {
			fatal("Failed to restore note", err)
		}
		// the note's own markers may point at notes created while it was away
		report, err := sess.Store.SyncReferences(ctx, n.ID())
		if err != nil {
			fatal("Failed to synchronize references", err)
		}
		fmt.Printf("Restored %s\n", n.ID())
		handleReport(ctx, sess, report)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note (archived instead while other notes reference it)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "delete note "+args[0])
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		// Trashing detaches the note, which may orphan archived targets.
		before := sess.Store.References(args[0])
		state, err := sess.Store.DeleteNote(ctx, args[0])
		if err != nil {
			fatal("Failed to delete note", err)
		}
		switch state {
		case core.StateArchived:
			fmt.Printf("%s is still referenced by %v and was archived\n", args[0], sess.Store.ReferencedBy(args[0]))
			return
		case core.StateTrashed:
			fmt.Printf("Moved %s to the trash\n", args[0])
		}

		var report core.SyncReport
		for _, id := range before {
			if n, ok := sess.Store.Note(id); ok && n.State() == core.StateArchived && len(sess.Store.ReferencedBy(id)) == 0 {
				report.Candidates = append(report.Candidates, id)
			}
		}
		handleReport(ctx, sess, report)
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect or empty the trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		for _, n := range sess.Store.NotesInState(core.StateTrashed) {
			fmt.Printf("%-34s %-8s %s\n", n.ID(), n.Kind(), n.Title())
		}
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently remove every trashed note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "empty trash")
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		report, err := sess.Store.EmptyTrash(ctx)
		if err != nil {
			fatal("Failed to empty trash", err)
		}
		fmt.Printf("Removed %d notes\n", report.Purged)
		handleReport(ctx, sess, core.SyncReport{Candidates: report.Candidates})
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd, restoreCmd, deleteCmd, trashCmd)
	trashCmd.AddCommand(trashListCmd, trashEmptyCmd)

	restoreCmd.Flags().BoolVar(&restoreFromTrash, "from-trash", false, "Allow restoring a trashed note")
	deleteCmd.Flags().BoolVar(&prune, "prune", false, "Delete archived notes that lost their last referencer")
	trashEmptyCmd.Flags().BoolVar(&prune, "prune", false, "Delete archived notes that lost their last referencer")
}
