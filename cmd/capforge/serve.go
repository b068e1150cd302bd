package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yalochat/capforge/internal/config"
	"github.com/yalochat/capforge/internal/server"
	"github.com/yalochat/capforge/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard API server",
	Long: `Start the HTTP server backing the guided wizard: session management,
pipeline triggers, artifact access, and a WebSocket event stream.

Examples:
  # Start with defaults (port 8080, capforge.db)
  capforge serve

  # Configure via environment
  CAPFORGE_SERVER_PORT=9090 CAPFORGE_LLM_API_KEY=sk-... capforge serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	log.Info("starting capforge",
		zap.String("version", version),
		zap.String("store", cfg.Store.Path),
		zap.String("provider", cfg.LLM.Provider))

	return server.New(st, cfg, log).Start()
}
