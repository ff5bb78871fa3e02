package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"webtoondl/logging"
)

var flagFollow bool

func init() {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the service log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return logging.Tail(ctx, cfg.Logging.LogPath(), flagFollow, cmd.OutOrStdout())
		},
	}
	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "keep printing new lines")

	rootCmd.AddCommand(logsCmd)
}
