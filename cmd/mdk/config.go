package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Print the effective configuration as TOML",
	Long: `Print the configuration mdk would run with, after merging defaults,
config files, MDK_* environment variables and flags.

Config files (YAML), lowest precedence first:
  ~/.config/mdkanban/config.yaml
  ./.mdkanban.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.WriteTOML(os.Stdout)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file and state database locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := statePath()
		if err != nil {
			return err
		}
		fmt.Printf("global:  %s\n", config.GlobalConfigPath())
		fmt.Printf("project: %s\n", config.ProjectConfigPath())
		fmt.Printf("state:   %s\n", state)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
