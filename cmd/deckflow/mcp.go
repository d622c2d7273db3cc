package main

import (
	"context"
	"fmt"

	"github.com/aretw0/deckflow/internal/cli"
	mcpadapter "github.com/aretw0/deckflow/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server",
	Long:  `Exposes projects as Model Context Protocol tools over stdio (default) or SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sse, _ := cmd.Flags().GetBool("sse")

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()

		srv := mcpadapter.NewServer(a.assistant, mcpadapter.WithLogger(logger))
		if !sse {
			return srv.ServeStdio()
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()
		baseURL := cfg.MCP.BaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost%s", cfg.MCP.Addr)
		}
		return srv.ServeSSE(sc, cfg.MCP.Addr, baseURL)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Bool("sse", false, "Serve over SSE on mcp.addr instead of stdio")
}
