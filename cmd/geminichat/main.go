package main

import (
	"fmt"
	"os"

	"GeminiChat/internal/telemetry"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "geminichat",
		Short: "Web chat front-end for the Gemini API",
		Long: `geminichat serves a single-user chat page that relays messages to a
Gemini model and shows the conversation.

The API key is read from GEMINI_API_KEY (optionally via a .env file).
Running without a subcommand is the same as 'geminichat serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
	flags.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(modelsCmd(flags))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", telemetry.ServiceName, telemetry.ServiceVersion)
		},
	}
}
