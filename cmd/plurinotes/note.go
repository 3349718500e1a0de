package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes"
	"github.com/aretw0/plurinotes/pkg/adapters/fs"
	"github.com/aretw0/plurinotes/pkg/core"
)

var (
	createID      string
	createTitle   string
	createKind    string
	createContent contentInput
	editContent   contentInput
	prune         bool
	listState     string
	listKind      string
	listMatch     string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, inspect and edit notes",
}

var noteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note with its first version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if createID == "" {
			createID = newNoteID()
		}
		in := createInput{ID: createID, Title: createTitle, Kind: createKind, contentInput: createContent}
		if err := inputValidate.Struct(in); err != nil {
			fatal("Invalid note", err)
		}
		kind, err := core.ParseKind(in.Kind)
		if err != nil {
			fatal("Invalid note", err)
		}
		attrs, err := createContent.attributes(cmd.Flags(), true)
		if err != nil {
			fatal("Invalid note", err)
		}

		ctx := withReason(context.Background(), "create note "+in.ID)
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		n, err := sess.Store.CreateNote(ctx, core.NoteSpec{ID: in.ID, Title: in.Title, Kind: kind, Attributes: attrs})
		if err != nil {
			fatal("Failed to create note", err)
		}
		fmt.Printf("Created %s %s\n", n.Kind(), n.ID())
		if refs := sess.Store.References(n.ID()); len(refs) > 0 {
			fmt.Printf("References: %s\n", strings.Join(refs, ", "))
		}
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note and its latest version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		n, ok := sess.Store.Note(args[0])
		if !ok {
			fatal("Failed to show note", fmt.Errorf("%w: %s", core.ErrNotFound, args[0]))
		}
		fmt.Printf("ID:       %s\n", n.ID())
		fmt.Printf("Title:    %s\n", n.Title())
		fmt.Printf("Kind:     %s\n", n.Kind())
		fmt.Printf("State:    %s\n", n.State())
		fmt.Printf("Created:  %s\n", n.CreatedAt().Format(time.RFC3339))
		fmt.Printf("Versions: %d\n", n.Len())
		if v, ok := n.Latest(); ok {
			printVersion(v, "  ")
		}
		if refs := sess.Store.References(n.ID()); len(refs) > 0 {
			fmt.Printf("References:    %s\n", strings.Join(refs, ", "))
		}
		if refs := sess.Store.ReferencedBy(n.ID()); len(refs) > 0 {
			fmt.Printf("Referenced by: %s\n", strings.Join(refs, ", "))
		}
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if listMatch != "" && !doublestar.ValidatePattern(listMatch) {
			fatal("Invalid pattern", fmt.Errorf("%q", listMatch))
		}
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		notes := sess.Store.Notes()
		if listState != "" {
			st, err := core.ParseState(listState)
			if err != nil {
				fatal("Invalid state", err)
			}
			notes = sess.Store.NotesInState(st)
		}
		kind := core.KindUnknown
		if listKind != "" {
			k, err := core.ParseKind(listKind)
			if err != nil {
				fatal("Invalid kind", err)
			}
			kind = k
		}

		for _, n := range notes {
			if kind != core.KindUnknown && n.Kind() != kind {
				continue
			}
			if listMatch != "" {
				if ok, _ := doublestar.Match(listMatch, n.ID()); !ok {
					continue
				}
			}
			fmt.Printf("%-34s %-8s %-9s %s\n", n.ID(), n.Kind(), n.State(), n.Title())
		}
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Add a new version to an active note",
	Long: `Add a new version to an active note. Fields not given on the command
line are carried over from the latest version. References are resynchronized
and archived notes that lost their last referencer are listed; --prune
deletes them.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := inputValidate.Struct(editContent); err != nil {
			fatal("Invalid content", err)
		}
		changed, err := editContent.attributes(cmd.Flags(), false)
		if err != nil {
			fatal("Invalid content", err)
		}

		id := args[0]
		ctx := withReason(context.Background(), "edit note "+id)
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		n, ok := sess.Store.Note(id)
		if !ok {
			fatal("Failed to edit note", fmt.Errorf("%w: %s", core.ErrNotFound, id))
		}
		if !n.Editable() {
			fatal("Failed to edit note", fmt.Errorf("note %s is %s", id, n.State()))
		}
		attrs := core.Attributes{}
		if v, ok := n.Latest(); ok {
			attrs = core.AttributesOf(v)
			delete(attrs, core.AttrModifiedAt)
		}
		for k, v := range changed {
			attrs[k] = v
		}

		_, report, err := sess.Store.CreateVersion(ctx, id, attrs)
		if err != nil {
			fatal("Failed to edit note", err)
		}
		fmt.Printf("Note %s now has %d versions\n", id, n.Len())
		handleReport(ctx, sess, report)
	},
}

var noteTitleCmd = &cobra.Command{
	Use:   "title <id> <title>",
	Short: "Change the title of a note",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := withReason(context.Background(), "retitle note "+args[0])
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		report, err := sess.Store.SetTitle(ctx, args[0], args[1])
		if err != nil {
			fatal("Failed to set title", err)
		}
		handleReport(ctx, sess, report)
	},
}

var historyLimit int

var noteHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List the versions of a note, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		n, ok := sess.Store.Note(args[0])
		if !ok {
			fatal("Failed to read history", fmt.Errorf("%w: %s", core.ErrNotFound, args[0]))
		}
		for i, v := range n.History() {
			if historyLimit > 0 && i >= historyLimit {
				break
			}
			fmt.Printf("#%d %s\n", n.Len()-i, v.ModifiedAt().Format(time.RFC3339))
			printVersion(v, "   ")
		}

		if vault, ok := sess.Gateway.(*fs.Vault); ok {
			log, err := vault.Log(n.ID(), max(historyLimit, 10))
			if err != nil {
				slog.Warn("failed to read git log", "error", err)
				return
			}
			if len(log) > 0 {
				fmt.Println("Changes:")
				for _, line := range log {
					fmt.Printf("  %s\n", line)
				}
			}
		}
	},
}

func printVersion(v core.Version, indent string) {
	switch v := v.(type) {
	case core.Article:
		fmt.Printf("%stext: %s\n", indent, v.Text)
	case core.Media:
		fmt.Printf("%sdescription: %s\n", indent, v.Description)
		fmt.Printf("%sfilename: %s\n", indent, v.Filename)
	case core.Task:
		fmt.Printf("%saction: %s\n", indent, v.Action)
		fmt.Printf("%sstatus: %s  priority: %d\n", indent, v.Status, v.Priority)
		if v.HasDeadline() {
			fmt.Printf("%sdeadline: %s\n", indent, v.Deadline.Format(time.DateOnly))
		}
	}
}

// handleReport prints what a reference synchronization changed and deletes
// the candidates when --prune is set.
func handleReport(ctx context.Context, sess *plurinotes.Session, report core.SyncReport) {
	if len(report.Added) > 0 {
		fmt.Printf("Now references: %s\n", strings.Join(report.Added, ", "))
	}
	if len(report.Removed) > 0 {
		fmt.Printf("No longer references: %s\n", strings.Join(report.Removed, ", "))
	}
	if len(report.Candidates) == 0 {
		return
	}
	if !prune {
		fmt.Printf("Archived and unreferenced (delete with --prune): %s\n", strings.Join(report.Candidates, ", "))
		return
	}
	for _, id := range report.Candidates {
		state, err := sess.Store.DeleteNote(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete %s: %v\n", id, err)
			continue
		}
		fmt.Printf("Pruned %s (%s)\n", id, state)
	}
}

func withReason(ctx context.Context, fallback string) context.Context {
	return core.WithChangeReason(ctx, firstNonEmpty(changeReason, fallback))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteCreateCmd, noteShowCmd, noteListCmd, noteEditCmd, noteTitleCmd, noteHistoryCmd)

	noteCreateCmd.Flags().StringVar(&createID, "id", "", "Note ID (generated when empty)")
	noteCreateCmd.Flags().StringVar(&createTitle, "title", "", "Note title")
	noteCreateCmd.Flags().StringVarP(&createKind, "kind", "k", "article", "Note kind: article, media or task")
	createContent.bind(noteCreateCmd.Flags())

	noteListCmd.Flags().StringVar(&listState, "state", "", "Only notes in this state (active, archived, trashed)")
	noteListCmd.Flags().StringVar(&listKind, "kind", "", "Only notes of this kind")
	noteListCmd.Flags().StringVar(&listMatch, "match", "", "Only notes whose ID matches this glob")

	editContent.bind(noteEditCmd.Flags())
	noteEditCmd.Flags().BoolVar(&prune, "prune", false, "Delete archived notes that lost their last referencer")
	noteTitleCmd.Flags().BoolVar(&prune, "prune", false, "Delete archived notes that lost their last referencer")
	noteHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show at most n versions")
}
