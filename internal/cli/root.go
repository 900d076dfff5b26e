// Package cli implements the splitledger command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

var (
	configFile string
	envFile    string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "Track shared expenses and settle group balances",
	Long: `splitledger records a group's shared expenses and computes who owes whom.
It serves a Connect API and REST read resources, applies database migrations,
consumes expense events and settles ledgers offline.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file, ignored when missing")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	logging.Setup(logging.Options{
		Level:  loaded.Log.Level,
		Format: loaded.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	cfg = loaded
	return nil
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}
