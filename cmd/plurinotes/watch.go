package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes/pkg/adapters/lifecycle"
	"github.com/aretw0/plurinotes/pkg/core"
)

var watchPattern string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print changes made to an fs vault by other processes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess := openSession(ctx)
		defer closeSession(context.Background(), sess)

		watchable, ok := sess.Gateway.(core.Watchable)
		if !ok {
			fatal("Failed to watch", fmt.Errorf("the %T gateway cannot be watched, use --adapter fs", sess.Gateway))
		}
		events, err := watchable.Watch(ctx, watchPattern)
		if err != nil {
			fatal("Failed to watch", err)
		}

		src := lifecycle.NewSource(events)
		if err := src.Start(ctx); err != nil {
			fatal("Failed to watch", err)
		}
		slog.Info("watching", "pattern", watchPattern)
		for e := range src.Events() {
			fmt.Println(e)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "**", "Glob over keys such as notes/<id> or relations/<name>")
}
