package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/livequiz/internal/api/response"
)

func newHealthCmd() *cobra.Command {
	var ready bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.HealthResponse

			path := "/api/v1/health"
			if ready {
				path = "/api/v1/ready"
			}
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&ready, "ready", false, "Check that the backing stores are reachable")

	return cmd
}
