// -- cmd/serve.go --
package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/llm"
	"github.com/nkratz/pagepilot/internal/observability"
	"github.com/nkratz/pagepilot/internal/server"
	"github.com/nkratz/pagepilot/internal/session"
	"github.com/nkratz/pagepilot/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser-session HTTP server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		// Inference is optional. Without an API key the session endpoints
		// still work; act/extract/observe report the capability as missing.
		var inferencer automation.Inferencer
		if cfg.LLM.APIKey != "" {
			client, err := llm.NewClient(ctx, cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize inference client: %w", err)
			}
			inferencer = client
		} else {
			logger.Warn("no LLM API key configured; act/extract/observe are disabled")
		}

		// Persistence is optional too. An empty database URL means no history.
		var actionStore server.ActionStore
		if cfg.Database.URL != "" {
			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to create database pool: %w", err)
			}
			defer pool.Close()

			st, err := store.New(ctx, pool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize action store: %w", err)
			}
			actionStore = st
		} else {
			logger.Warn("no database configured; action history is disabled")
		}

		factory := session.NewChromeFactory(cfg.Browser, inferencer, logger)
		manager := session.NewManager(cfg.Session, factory, logger)
		defer manager.CloseAll()

		srv := server.New(cfg.Server, manager, actionStore, logger)
		logger.Info("serve starting", zap.String("addr", cfg.Server.Addr))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
