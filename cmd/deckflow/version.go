package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/deckflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of deckflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deckflow version %s\n", strings.TrimSpace(deckflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
