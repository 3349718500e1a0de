package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes/pkg/core"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show note counts and the state of the storage",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess := openSession(ctx)
		defer closeSession(ctx, sess)

		if statusJSON {
			components := map[string]any{}
			for _, c := range []any{sess.Store, sess.Gateway} {
				if comp, ok := c.(introspection.Component); ok {
					if in, ok := c.(introspection.Introspectable); ok {
						components[comp.ComponentType()] = in.State()
					}
				}
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(components); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, k := range core.Kinds {
			fmt.Printf("%-8s %d active\n", k, sess.Store.ActiveCount(k))
		}
		fmt.Printf("archived %d\n", len(sess.Store.NotesInState(core.StateArchived)))
		fmt.Printf("trashed  %d\n", sess.Store.TrashCount())
		fmt.Printf("relations %d\n", len(sess.Store.Relations()))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the component state as JSON")
}
