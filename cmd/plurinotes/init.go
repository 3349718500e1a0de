package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes"
	"github.com/aretw0/plurinotes/internal/platform"
)

var initEmptyTrash bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a data directory",
	Long: `Initialize a data directory and write plurinotes.yaml. The sqlite adapter
creates plurinotes.db with the template relations; the fs adapter creates a
YAML vault, versioned with git unless --gitless is given.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := dataDir
		if dir == "" {
			dir = "."
		}

		cfg, err := plurinotes.LoadConfig(dir)
		if err != nil {
			fatal("Failed to read config", err)
		}
		if adapter != "" {
			cfg.Adapter = adapter
		}
		if cfg.Adapter == "" {
			cfg.Adapter = platform.AdapterSQLite
		}
		if gitless {
			v := false
			cfg.Versioning = &v
		}
		cfg.EmptyTrashOnClose = cfg.EmptyTrashOnClose || initEmptyTrash

		ctx := withReason(context.Background(), "initialize notes")
		sess, err := plurinotes.Open(ctx, dir, sessionOptions(dir, append(cfg.Options(), plurinotes.WithAutoInit(true))...)...)
		if err != nil {
			fatal("Failed to initialize", err)
		}
		defer closeSession(ctx, sess)

		if err := platform.SaveConfig(dir, cfg); err != nil {
			fatal("Failed to write config", err)
		}
		fmt.Printf("Initialized %s notes in %s\n", cfg.Adapter, dir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initEmptyTrash, "empty-trash-on-close", false, "Purge the trash at the end of every command")
}
