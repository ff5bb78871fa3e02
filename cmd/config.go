package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"webtoondl/config"
)

var (
	flagForce bool
	flagYAML  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the sample configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := flagConfig
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}

		if err := config.WriteSample(path, flagForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, usedPath, err := config.Load(flagConfig)
		if err != nil {
			return err
		}

		var out []byte
		if flagYAML {
			out, err = yaml.Marshal(cfg)
		} else {
			out, err = toml.Marshal(cfg)
		}
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		if usedPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", usedPath)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "# defaults")
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing file")
	configShowCmd.Flags().BoolVar(&flagYAML, "yaml", false, "print as YAML instead of TOML")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
