package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jschreck/saga/internal/mcp"
	"github.com/jschreck/saga/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat TUI",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	return tui.Run(newClient(), conversation)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Saga tools over MCP stdio",
	Long:  `Runs an MCP server on stdin/stdout. Every tool call is forwarded to the Saga server.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.Run(mcp.NewServer(newClient(), version))
	},
}

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archived conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		archives, err := newClient().Archives(ctx)
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			fmt.Println("No archives yet.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tTITLE\tCREATED")
		for _, a := range archives {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Label, a.Title, a.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		h, err := newClient().Status(ctx)
		if h == nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(h); encErr != nil {
			return encErr
		}
		return err
	},
}
