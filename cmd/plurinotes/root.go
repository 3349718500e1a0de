package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes"
)

var (
	verbose bool
	dataDir string
	adapter string
	gitless bool

	changeReason string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plurinotes",
	Short: "A note keeper for articles, media and tasks with versioned history",
	Long: `PluriNotes keeps articles, media and tasks with an append-only version
history. Notes reference each other with \ref{id} markers; references keep
their targets alive by archiving them instead of trashing them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "", "Data directory (defaults to the nearest one above the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: sqlite, fs or memory (overrides plurinotes.yaml)")
	rootCmd.PersistentFlags().BoolVar(&gitless, "gitless", false, "Disable git versioning of an fs vault")
	rootCmd.PersistentFlags().StringVarP(&changeReason, "message", "m", "", "Change reason recorded by versioned vaults")
}

// resolveDir returns the data directory: the --dir flag, the nearest root
// above the working directory, or the working directory itself.
func resolveDir() string {
	if dataDir != "" {
		return dataDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	if root, err := plurinotes.FindRoot(cwd); err == nil {
		return root
	}
	return cwd
}

// sessionOptions merges plurinotes.yaml with the global flags.
func sessionOptions(dir string, extra ...plurinotes.Option) []plurinotes.Option {
	cfg, err := plurinotes.LoadConfig(dir)
	if err != nil {
		fatal("Failed to read config", err)
	}
	opts := cfg.Options()
	if adapter != "" {
		opts = append(opts, plurinotes.WithAdapter(adapter))
	}
	if gitless {
		opts = append(opts, plurinotes.WithVersioning(false))
	}
	opts = append(opts, plurinotes.WithLogger(slog.Default()))
	return append(opts, extra...)
}

// openSession opens the data directory or exits.
func openSession(ctx context.Context, extra ...plurinotes.Option) *plurinotes.Session {
	dir := resolveDir()
	sess, err := plurinotes.Open(ctx, dir, sessionOptions(dir, extra...)...)
	if err != nil {
		fatal("Failed to open notes", err)
	}
	return sess
}

// closeSession releases the session, reporting failures without exiting.
func closeSession(ctx context.Context, sess *plurinotes.Session) {
	if err := sess.Close(ctx); err != nil {
		slog.Error("failed to close session", "error", err)
	}
}
