// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/internal/config"
	"github.com/nkratz/pagepilot/internal/observability"
)

var (
	cfgFile string
	// cfg is populated by the root PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "pagepilot",
	Short:   "PagePilot drives AI-assisted browser sessions over HTTP.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		config.SetDefaults(v)
		if err := config.BindViper(v, cfgFile); err != nil {
			return err
		}

		loaded, err := config.NewConfigFromViper(v)
		if err != nil {
			// Fall back to a minimal logger so the failure is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagepilot"})
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("starting pagepilot", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with signal-aware cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		observability.GetLogger().Error("command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
