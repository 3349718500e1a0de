package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/plurinotes"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of plurinotes",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("plurinotes version %s\n", strings.TrimSpace(plurinotes.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
