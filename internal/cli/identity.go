package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the player identity the CLI acts as",
	}

	cmd.AddCommand(newIdentitySetCmd())
	cmd.AddCommand(newIdentityShowCmd())

	return cmd
}

func newIdentitySetCmd() *cobra.Command {
	var (
		id     string
		avatar string
		guest  bool
	)

	cmd := &cobra.Command{
		Use:   "set <display-name>",
		Short: "Save an identity for later commands",
		Long:  "Save an identity to the identity file. A random player id is generated unless --id is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = uuid.NewString()
			}
			identity := Identity{
				PlayerID:    id,
				DisplayName: args[0],
				Avatar:      avatar,
				Guest:       guest,
			}
			if err := cfg.SaveIdentity(identity); err != nil {
				return fmt.Errorf("save identity: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(identity)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Player id (default: random)")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar")
	cmd.Flags().BoolVar(&guest, "guest", true, "Play as a guest")

	return cmd
}

func newIdentityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Identity.PlayerID == "" {
				return fmt.Errorf("no identity set; run 'livequiz identity set <name>'")
			}
			out := NewOutput(cfg.Output)
			out.Print(cfg.Identity)
			return nil
		},
	}
}
