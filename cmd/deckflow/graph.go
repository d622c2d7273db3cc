package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/deckflow/internal/compiler"
	"github.com/aretw0/deckflow/internal/presentation/graph"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/workflows"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Export a workflow as a Mermaid diagram",
	Long: `Prints a built-in workflow (presentation by default) or the topology in --file
as a Mermaid flowchart (graph TD).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		asJSON, _ := cmd.Flags().GetBool("json")

		var (
			t   domain.Topology
			err error
		)
		switch {
		case file != "":
			t, err = compiler.NewParser().ParseFile(file)
		case len(args) > 0:
			t, err = workflows.Lookup(args[0])
		default:
			t, err = workflows.Lookup(workflows.NamePresentation)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		}
		fmt.Print(graph.GenerateMermaid(t, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("file", "f", "", "Topology file (YAML or JSON)")
	graphCmd.Flags().Bool("json", false, "Print the topology as JSON instead of Mermaid")
}
