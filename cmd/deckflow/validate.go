package main

import (
	"fmt"

	"github.com/aretw0/deckflow/internal/compiler"
	"github.com/aretw0/deckflow/internal/validator"
	"github.com/aretw0/deckflow/pkg/adapters/scripted"
	"github.com/aretw0/deckflow/pkg/tools"
	"github.com/aretw0/deckflow/pkg/workflows"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology-file>",
	Short: "Check a topology file for consistency",
	Long:  `Reports unknown node kinds and routers, dangling edges, nodes without exactly one outgoing edge and nodes unreachable from START.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := compiler.NewParser().ParseFile(args[0])
		if err != nil {
			return err
		}
		catalog := workflows.NewCatalog(scripted.New(), tools.NewDefaultRegistry())
		if err := validator.ValidateTopology(t, catalog); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Printf("Topology %q is valid.\n", t.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
