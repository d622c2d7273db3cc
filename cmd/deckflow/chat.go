package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/deckflow/internal/cli"
	"github.com/aretw0/deckflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan a presentation interactively",
	Long: `Opens a chat session on a project. Without --project a new project is created
from --title. Type /help inside the session for commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		title, _ := cmd.Flags().GetString("title")
		style, _ := cmd.Flags().GetString("style")

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		if projectID == "" {
			p, err := a.assistant.CreateProject(sc, title, "")
			if err != nil {
				return err
			}
			projectID = p.ID
		}

		opts := []cli.ChatOption{cli.WithLogger(logger)}
		if cli.IsInteractive(os.Stdout) {
			tui.PrintBanner(os.Stdout)
			r, err := tui.NewRenderer(style, cli.TerminalWidth(os.Stdout, 80))
			if err != nil {
				return err
			}
			opts = append(opts, cli.WithRenderer(r))
		}
		if !cli.IsInteractive(os.Stdin) {
			opts = append(opts, cli.WithPrompt(""))
		}

		if err := cli.NewChat(a.assistant, os.Stdin, os.Stdout, opts...).Run(sc, projectID); err != nil {
			return err
		}
		fmt.Printf("Project %s saved. Resume with: deckflow chat --project %s\n", projectID, projectID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("project", "", "Existing project ID")
	chatCmd.Flags().String("title", "Untitled presentation", "Title of the new project")
	chatCmd.Flags().String("style", "", "Glamour style (dark, light, notty); empty detects the terminal")
}
