package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/apivault/cmd/apivault/commands"
	"github.com/systmms/apivault/internal/config"
	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		settingsFile   string
		sessionFile    string
		backendURL     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "apivault",
		Short: "API Vault - cloud secrets and vault keys for API clients",
		Long: `apivault fetches secrets from cloud secret managers through a local cache
and manages the end-to-end vault key of your account.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = logging.New(debug, noColor)
			cfg.SettingsPath = settingsFile
			cfg.SessionPath = sessionFile
			cfg.BackendURL = backendURL
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Settings file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session", "", "Session file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Vault backend URL (overrides the backendURL setting)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt")

	rootCmd.AddCommand(
		commands.NewSecretCommand(cfg),
		commands.NewAccountCommand(cfg),
		commands.NewVaultKeyCommand(cfg),
		commands.NewServeCommand(cfg),
		commands.NewProvidersCommand(cfg),
	)

	return apierrors.SimplifyError(rootCmd.Execute())
}
