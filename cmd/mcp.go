package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gitwatch/gitwatch/internal/mcpserver"
	"github.com/gitwatch/gitwatch/internal/notify"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for coding-agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents query gitwatch for repository sync state and
trigger fetches. Configure with:

  {
    "mcpServers": {
      "gitwatch": { "command": "gitwatch", "args": ["mcp"] }
    }
  }

Available tools: gitwatch_list_repos, gitwatch_repo_status,
gitwatch_sync_repo, gitwatch_sync_all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	// Stdout belongs to the MCP transport; alerts go to the log only.
	logger := slog.Default()
	sched := newEngine(s, &notify.LogSink{Logger: logger}, logger)

	srv := mcpserver.NewServer(s, sched)
	return srv.ServeStdio(context.Background())
}
