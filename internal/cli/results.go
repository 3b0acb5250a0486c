package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/livequiz/internal/api/response"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Finished game results",
	}

	cmd.AddCommand(newResultsGetCmd())
	cmd.AddCommand(newResultsDetailCmd())
	cmd.AddCommand(newResultsPlayersCmd())

	return cmd
}

func newResultsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a game summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Summary

			if err := client.Get("/api/v1/results/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newResultsDetailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detail <id>",
		Short: "Show a game's questions and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Detail

			if err := client.Get("/api/v1/results/"+args[0]+"/detail", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newResultsPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players <id>",
		Short: "Show the ranked players of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.PlayerResult

			if err := client.Get("/api/v1/results/"+args[0]+"/players", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
