package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jschreck/saga/internal/app"
	"github.com/jschreck/saga/internal/config"
	"github.com/jschreck/saga/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest documents into the lore collection",
	Long: `Loads every .pdf, .txt and .md file in dir (the configured upload
directory by default), splits it into chunks, embeds the chunks that are not
indexed yet and upserts them into Qdrant. Runs locally against the same
configuration as the server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.LogLevel)

	dir := cfg.UploadDir
	if len(args) == 1 {
		dir = args[0]
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("ingest dir: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lore := app.NewLore(cfg, db, logger)
	if err := lore.Qdrant.HealthCheck(cmd.Context()); err != nil {
		return fmt.Errorf("qdrant unavailable: %w", err)
	}

	result, err := app.NewPipeline(cfg, db, lore, logger).IngestDir(cmd.Context(), dir)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
