package cli

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/aetherment-labs/aetherment/internal/branding"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		version, commit, date := buildInfo()
		if versionShort {
			fmt.Fprintln(out, version)
			return nil
		}

		if versionJSON {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "%s version %s (commit: %s, built: %s)\n", branding.CLIName(), version, commit, date)
		return nil
	},
}

// buildInfo returns the ldflags values, falling back to the module version
// and VCS stamp embedded by `go install`.
func buildInfo() (version, commit, date string) {
	version, commit, date = buildVersion, buildCommit, buildDate
	if version != "" && version != "dev" {
		return version, commit, date
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit, date
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" || commit == "unknown" {
				commit = s.Value
			}
		case "vcs.time":
			if date == "" || date == "unknown" {
				date = s.Value
			}
		}
	}
	return version, commit, date
}
