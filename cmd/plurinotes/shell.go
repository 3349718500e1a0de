package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes/pkg/command"
	"github.com/aretw0/plurinotes/pkg/core"
)

const shellHelp = `commands:
  list [state]                 list notes, optionally only active|archived|trashed
  show <id>                    show a note
  new <kind> <id> [content]    create an article, media or task note
  edit <id> <content>          add a version (text, description or action)
  title <id> <title>           change the title
  archive <id> | restore <id>  undoable lifecycle moves
  delete <id>                  delete (archives while referenced)
  prune                        delete the last reported candidates
  undo | redo | history        command history
  trash | empty                list or empty the trash
  status | help | quit`

var shellHistoryLimit int

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with undo and redo",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		sh := newShell(sess.Store, os.Stdout, command.WithLimit(shellHistoryLimit))
		if err := sh.run(ctx, os.Stdin, interactive()); err != nil {
			fatal("Shell failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().IntVar(&shellHistoryLimit, "history", 100, "Maximum number of undoable commands")
}

// shell interprets one line at a time against a store. Archive and restore
// go through the command stack; everything else acts on the store directly.
type shell struct {
	store *core.Store
	stack *command.Stack
	out   io.Writer

	// candidates from the last reference synchronization
	candidates []string
}

func newShell(store *core.Store, out io.Writer, opts ...command.StackOption) *shell {
	return &shell{store: store, stack: command.NewStack(store, opts...), out: out}
}

func (sh *shell) run(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(sh.out, styles.Prompt.Render("plurinotes> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := sh.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(sh.out, styles.Error.Render("error: "+err.Error()))
		}
		if quit {
			return nil
		}
	}
}

var errUsage = errors.New("usage")

// exec runs one line and reports whether the shell should stop.
func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := fields[0], fields[1:]
	rest := func(from int) string {
		if len(args) <= from {
			return ""
		}
		return strings.Join(args[from:], " ")
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s needs %d argument(s), see help", errUsage, name, n)
		}
		return nil
	}

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "list":
		notes := sh.store.Notes()
		if len(args) > 0 {
			st, err := core.ParseState(args[0])
			if err != nil {
				return false, err
			}
			notes = sh.store.NotesInState(st)
		}
		for _, n := range notes {
			fmt.Fprintf(sh.out, "%-34s %-8s %-9s %s\n", n.ID(), n.Kind(), n.State(), n.Title())
		}
	case "show":
		if err := need(1); err != nil {
			return false, err
		}
		n, ok := sh.store.Note(args[0])
		if !ok {
			return false, fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
		}
		fmt.Fprintf(sh.out, "%s %s %s %q (%d versions)\n", n.ID(), n.Kind(), n.State(), n.Title(), n.Len())
		if refs := sh.store.References(n.ID()); len(refs) > 0 {
			fmt.Fprintf(sh.out, "  references: %s\n", strings.Join(refs, ", "))
		}
		if refs := sh.store.ReferencedBy(n.ID()); len(refs) > 0 {
			fmt.Fprintf(sh.out, "  referenced by: %s\n", strings.Join(refs, ", "))
		}
	case "new":
		if err := need(2); err != nil {
			return false, err
		}
		kind, err := core.ParseKind(args[0])
		if err != nil {
			return false, err
		}
		if !noteIDPattern.MatchString(args[1]) {
			return false, fmt.Errorf("%w: invalid note id %q", core.ErrInvalidArgument, args[1])
		}
		if _, err := sh.store.CreateNote(ctx, core.NoteSpec{ID: args[1], Kind: kind, Attributes: contentAttributes(kind, rest(2))}); err != nil {
			return false, err
		}
		sh.ok("created " + args[1])
	case "edit":
		if err := need(2); err != nil {
			return false, err
		}
		n, ok := sh.store.Note(args[0])
		if !ok {
			return false, fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
		}
		if !n.Editable() {
			return false, fmt.Errorf("note %s is %s", n.ID(), n.State())
		}
		attrs := core.Attributes{}
		if v, ok := n.Latest(); ok {
			attrs = core.AttributesOf(v)
			delete(attrs, core.AttrModifiedAt)
		}
		for k, v := range contentAttributes(n.Kind(), rest(1)) {
			attrs[k] = v
		}
		_, report, err := sh.store.CreateVersion(ctx, n.ID(), attrs)
		sh.report(report)
		return false, err
	case "title":
		if err := need(2); err != nil {
			return false, err
		}
		report, err := sh.store.SetTitle(ctx, args[0], rest(1))
		sh.report(report)
		return false, err
	case "archive", "restore":
		if err := need(1); err != nil {
			return false, err
		}
		c := command.Archive(args[0])
		if name == "restore" {
			c = command.Restore(args[0])
		}
		if n, ok := sh.store.Note(args[0]); !ok {
			return false, fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
		} else if n.State() != c.From {
			return false, fmt.Errorf("%w: %s is %s", core.ErrInvalidTransition, n.ID(), n.State())
		}
		report, err := sh.stack.Push(ctx, c)
		sh.report(report)
		if err == nil {
			sh.ok(c.String())
		}
		return false, err
	case "delete":
		if err := need(1); err != nil {
			return false, err
		}
		state, err := sh.store.DeleteNote(ctx, args[0])
		if err != nil {
			return false, err
		}
		sh.ok(fmt.Sprintf("%s is now %s", args[0], state))
	case "prune":
		for _, id := range sh.candidates {
			if _, err := sh.store.DeleteNote(ctx, id); err != nil {
				return false, err
			}
			sh.ok("pruned " + id)
		}
		sh.candidates = nil
	case "undo":
		c, report, err := sh.stack.Undo(ctx)
		if err != nil {
			return false, err
		}
		sh.report(report)
		sh.ok("undid " + c.String())
	case "redo":
		c, report, err := sh.stack.Redo(ctx)
		if err != nil {
			return false, err
		}
		sh.report(report)
		sh.ok("redid " + c.String())
	case "history":
		for i, c := range sh.stack.History() {
			fmt.Fprintf(sh.out, "%3d  %s\n", i+1, c)
		}
	case "trash":
		for _, n := range sh.store.NotesInState(core.StateTrashed) {
			fmt.Fprintf(sh.out, "%-34s %-8s %s\n", n.ID(), n.Kind(), n.Title())
		}
	case "empty":
		r, err := sh.store.EmptyTrash(ctx)
		sh.ok(fmt.Sprintf("removed %d notes", r.Purged))
		sh.report(core.SyncReport{Candidates: r.Candidates})
		return false, err
	case "status":
		for _, k := range core.Kinds {
			fmt.Fprintf(sh.out, "%-8s %d active\n", k, sh.store.ActiveCount(k))
		}
		fmt.Fprintf(sh.out, "trashed  %d\n", sh.store.TrashCount())
	default:
		return false, fmt.Errorf("%w: unknown command %q, see help", errUsage, name)
	}
	return false, nil
}

// contentAttributes puts text into the main field of the kind.
func contentAttributes(kind core.Kind, text string) core.Attributes {
	switch kind {
	case core.KindMedia:
		return core.Attributes{core.AttrDescription: text}
	case core.KindTask:
		return core.Attributes{core.AttrAction: text}
	default:
		return core.Attributes{core.AttrText: text}
	}
}

func (sh *shell) report(r core.SyncReport) {
	if len(r.Added) > 0 {
		fmt.Fprintln(sh.out, styles.Muted.Render("+ref "+strings.Join(r.Added, ", ")))
	}
	if len(r.Removed) > 0 {
		fmt.Fprintln(sh.out, styles.Muted.Render("-ref "+strings.Join(r.Removed, ", ")))
	}
	if len(r.Candidates) > 0 {
		sh.candidates = append(sh.candidates, r.Candidates...)
		fmt.Fprintln(sh.out, styles.Warning.Render("unreferenced archived notes (run prune): "+strings.Join(r.Candidates, ", ")))
	}
}

func (sh *shell) ok(msg string) {
	fmt.Fprintln(sh.out, styles.Success.Render(msg))
}
