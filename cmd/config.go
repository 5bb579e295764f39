package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvgrid/internal/config"
)

var (
	configOutput string
	configForce  bool
)

// configCmd groups configuration-related subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kvgrid configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Marshal(activeConfig, configOutput)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if configOutput != "json" && len(activeConfig.Sources) > 0 {
			if _, err := fmt.Fprintf(w, "# merged from: %s\n", strings.Join(activeConfig.Sources, ", ")); err != nil {
				return err
			}
		}
		_, err = w.Write(out)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Long:  "init writes the commented default configuration to path, or to the user config file when no path is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalConfigPath(nil)
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("cannot determine the user config directory; pass a path")
		}
		if err := config.WriteDefault(path, configForce); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := config.GlobalConfigPath(nil)
		state := "missing"
		if _, err := os.Stat(path); err == nil {
			state = "exists"
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, state)
		return err
	},
}

func init() { //nolint:gochecknoinits
	configGetCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format: yaml|json")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configGetCmd, configInitCmd, configPathCmd)
}
