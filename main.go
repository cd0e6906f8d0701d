package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"portfolio-gateway/cmd"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "portfolio-gateway",
		Short:        "Rate-limited, cached gateway for multi-chain portfolio data",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the caches of a running server",
	}
	cacheCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the running server")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache sizes",
		RunE: func(command *cobra.Command, args []string) error {
			server, _ := command.Flags().GetString("server")
			keys, _ := command.Flags().GetBool("keys")
			return cmd.RunCacheStats(command.Context(), server, keys, command.OutOrStdout())
		},
	}
	statsCmd.Flags().Bool("keys", false, "Also list the cached keys")

	cacheCmd.AddCommand(
		statsCmd,
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached entry",
			RunE: func(command *cobra.Command, args []string) error {
				server, _ := command.Flags().GetString("server")
				return cmd.RunCacheClear(command.Context(), server, command.OutOrStdout())
			},
		},
	)

	portfolioCmd := &cobra.Command{
		Use:   "portfolio <address>",
		Short: "Fetch one cross-chain portfolio summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			config, _ := command.Flags().GetString("config")
			chains, _ := command.Flags().GetString("chains")
			return cmd.RunPortfolio(command.Context(), config, args[0], chains, command.OutOrStdout())
		},
	}
	portfolioCmd.Flags().String("chains", "", "Comma separated chain ids (default: all configured chains)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API",
			RunE: func(command *cobra.Command, args []string) error {
				config, _ := command.Flags().GetString("config")
				return cmd.RunServe(config)
			},
		},
		cacheCmd,
		portfolioCmd,
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
