package main

import (
	"fmt"
	"text/tabwriter"

	"GeminiChat/internal/chatbot"
	"GeminiChat/internal/telemetry"

	"github.com/spf13/cobra"
)

func modelsCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available for chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logFile.Close()

			bot, err := chatbot.NewChatBot(cmd.Context(), cfg, chatbot.WithLogger(logger))
			if err != nil {
				return err
			}
			defer bot.Close()

			models, err := bot.Models(cmd.Context())
			if err != nil {
				return err
			}
			def, err := bot.DefaultModel(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tINPUT\tOUTPUT\t")
			for _, m := range models {
				name := m.Name
				if name == def {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t\n", name, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
			}
			return w.Flush()
		},
	}
}
