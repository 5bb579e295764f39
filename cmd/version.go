package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kvgrid/pkg/settings"
)

var versionOutput string

// cliVersionString builds the one-line version used by `kvgrid version` and --version.
func cliVersionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime, runtime.Version())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print kvgrid version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		switch versionOutput {
		case "", "text":
			_, err := fmt.Fprintln(w, cliVersionString())
			return err
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(settings.VersionInformation)
		case "yaml":
			return yaml.NewEncoder(w).Encode(settings.VersionInformation)
		default:
			return fmt.Errorf("invalid output format %q: valid values are text, json, yaml", versionOutput)
		}
	},
}

func init() { //nolint:gochecknoinits
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "text", "output format: text|json|yaml")
}
