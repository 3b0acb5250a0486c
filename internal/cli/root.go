package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "livequiz",
		Short: "Live multiplayer quiz server and client",
		Long: `livequiz runs the live quiz server and talks to its JSON API.

Use "livequiz serve" to run the server. The other commands act as the
configured player identity against a running server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load identity from file if not provided via flag/env
			if err := cfg.LoadIdentity(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Identity)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: LIVEQUIZ_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Identity.PlayerID, "player-id", cfg.Identity.PlayerID, "Player id to act as (env: LIVEQUIZ_PLAYER_ID)")
	rootCmd.PersistentFlags().StringVar(&cfg.Identity.DisplayName, "name", cfg.Identity.DisplayName, "Display name (env: LIVEQUIZ_PLAYER_NAME)")
	rootCmd.PersistentFlags().StringVar(&cfg.IdentityFile, "identity-file", cfg.IdentityFile, "Identity file path (env: LIVEQUIZ_IDENTITY_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIdentityCmd())
	rootCmd.AddCommand(newQuizCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
