// Package cli implements gatewayctl, the operator and integration tool for the gateway.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Options are the global flags.
type Options struct {
	ServerURL  string
	AdminToken string
	Output     string
}

func defaultOptions() *Options {
	return &Options{
		ServerURL:  envOr("GATEWAY_SERVER", "http://localhost:8080"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		Output:     "text",
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := defaultOptions()

	rootCmd := &cobra.Command{
		Use:   "gatewayctl",
		Short: "CLI tool for the player ticket gateway",
		Long: `gatewayctl signs and sends player connect requests, inspects channel tokens
and runs operator queries against the gateway API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.ServerURL, "server", opts.ServerURL, "Gateway URL (env: GATEWAY_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.AdminToken, "admin-token", opts.AdminToken, "Operator bearer token (env: ADMIN_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: text, json")

	rootCmd.AddCommand(newSignCmd(opts))
	rootCmd.AddCommand(newConnectCmd(opts))
	rootCmd.AddCommand(newChannelCmd(opts))
	rootCmd.AddCommand(newAdminCmd(opts))
	rootCmd.AddCommand(newHealthCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
