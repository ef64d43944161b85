package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/aetherment-labs/aetherment/internal/local"
	"github.com/aetherment-labs/aetherment/internal/manifest"
	"github.com/aetherment-labs/aetherment/internal/updater"
	"github.com/spf13/cobra"
)

var checkManifest string

func init() {
	doctorCmd.Flags().StringVar(&checkManifest, "check-manifest", "", "Validate a manifest file at the given path")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the config directory and installed mods",
	Long:  `Run diagnostic checks on the settings file, the mods directories and the last update check.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if checkManifest != "" {
			return runManifestCheck(out, checkManifest)
		}

		failures := runConfigCheck(out) + runModsCheck(out)
		runReportCheck(out)
		if failures > 0 {
			return fmt.Errorf("%d check(s) failed", failures)
		}
		return nil
	},
}

func runConfigCheck(w io.Writer) int {
	fmt.Fprintln(w, "Config check:")
	store := config.Open(configDir())
	if err := store.Check(); err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", store.Path(), err)
		return 1
	}
	if _, err := os.Stat(store.Path()); os.IsNotExist(err) {
		fmt.Fprintf(w, "  [INFO] %s not created yet, defaults apply\n", store.Path())
		return 0
	}
	fmt.Fprintf(w, "  [ OK ] %s is valid\n", store.Path())
	return 0
}

func runModsCheck(w io.Writer) int {
	fmt.Fprintln(w, "Mods check:")
	store, err := loadStore()
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}

	failures := 0
	for _, root := range app.Roots(configDir(), store.Config()) {
		entries, err := os.ReadDir(root.Path)
		if os.IsNotExist(err) {
			fmt.Fprintf(w, "  [INFO] %s does not exist yet\n", root.Path)
			continue
		}
		if err != nil {
			fmt.Fprintf(w, "  [FAIL] %s: %v\n", root.Path, err)
			failures++
			continue
		}
		packages := local.NewPackages(root)
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			m, err := packages.GetModLocal(e.Name())
			if err != nil {
				fmt.Fprintf(w, "  [FAIL] %s: %v\n", e.Name(), err)
				failures++
				continue
			}
			fmt.Fprintf(w, "  [ OK ] %s %s\n", m.ID, orDash(m.Version))
		}
	}
	return failures
}

func runReportCheck(w io.Writer) {
	fmt.Fprintln(w, "Update check:")
	report, err := updater.LoadReport(configDir())
	switch {
	case err != nil:
		fmt.Fprintf(w, "  [WARN] %v\n", err)
	case report == nil:
		fmt.Fprintln(w, "  [INFO] No update check recorded yet")
	case updater.IsStale(report, updater.DefaultReportMaxAge):
		fmt.Fprintf(w, "  [WARN] Last check %s is stale\n", report.CheckedAt.Format("2006-01-02 15:04"))
	default:
		fmt.Fprintf(w, "  [ OK ] Last check %s: %d updated, %d failed\n",
			report.CheckedAt.Format("2006-01-02 15:04"),
			report.Count(updater.OutcomeUpdated), report.Count(updater.OutcomeFailed))
	}
}

func runManifestCheck(w io.Writer, path string) error {
	fmt.Fprintf(w, "Manifest validation: %s\n", path)

	result, err := manifest.ValidateFile(path)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	if result.Valid {
		m, err := manifest.Parse(path)
		if err != nil {
			fmt.Fprintln(w, "  [ OK ] Valid manifest")
			return nil
		}
		fmt.Fprintf(w, "  [ OK ] Valid manifest: %s (v%s)\n", m.ID, m.Version)
		return nil
	}

	fmt.Fprintf(w, "  [FAIL] %d validation issue(s):\n", len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Path != "" {
			fmt.Fprintf(w, "    - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(w, "    - %s\n", issue.Message)
		}
	}
	return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(result.Issues))
}
