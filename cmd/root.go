package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webtoondl/config"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "webtoondl",
	Short:         "Webcomic episode downloader with PDF, EPUB and inline image output",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default ~/.config/webtoondl/config.toml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, _, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}
