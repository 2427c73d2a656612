package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := NewClient(opts.ServerURL).Do(cmd.Context(), http.MethodGet, "/ready", nil, &result); err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.Output).Print(result)
		},
	}
}
