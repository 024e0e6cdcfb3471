package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jschreck/saga/internal/chat"
	"github.com/jschreck/saga/internal/client"
)

var version = "dev"

var (
	serverURL    string
	conversation string
)

var rootCmd = &cobra.Command{
	Use:   "saga",
	Short: "Talk to Saga, a conversational assistant with long-term memory",
	Long: `saga is the command-line client for a Saga server.

With no subcommand it opens the chat TUI.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	defaultURL := os.Getenv("SAGA_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "Saga server URL (env SAGA_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&conversation, "conversation", chat.DefaultConversation, "conversation id (\"new\" starts a fresh one)")

	rootCmd.AddCommand(chatCmd, ingestCmd, mcpCmd, archivesCmd, statusCmd)

	cobra.OnInitialize(func() {
		if conversation == "new" {
			conversation = uuid.NewString()[:8]
		}
		conversation = chat.NormalizeConversationID(conversation)
	})
}

func newClient() *client.Client {
	return client.New(serverURL, conversation)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
