package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"webtoondl/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the webtoondl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.VersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
