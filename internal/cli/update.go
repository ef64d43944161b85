package cli

import (
	"fmt"
	"io"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/updater"
	"github.com/spf13/cobra"
)

var (
	updateCheck       bool
	updateForce       bool
	updateConcurrency int
)

func init() {
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "Only check for updates, don't install")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "Reinstall even if already on the latest version")
	updateCmd.Flags().IntVar(&updateConcurrency, "concurrency", updater.DefaultConcurrency, "Mods checked at once")

	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [id...]",
	Short: "Update auto-update mods",
	Long: `Check every auto-update mod against its repository and install newer versions.
Mods without auto-update, local development mods and mods without a
repository are skipped. A failing mod never stops the others.

  aetherment update               # update all auto-update mods
  aetherment update --check       # check only
  aetherment update accent        # update selected mods`,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{
		Force:       updateForce,
		CheckOnly:   updateCheck,
		Concurrency: updateConcurrency,
	})
	if err != nil {
		return err
	}

	mods, err := selectMods(a.Registry().Snapshot(), args)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Checking for updates...")
	report := a.Checker().Sweep(cmd.Context(), mods)
	printReport(cmd.OutOrStdout(), report)

	if failed := report.Count(updater.OutcomeFailed); failed > 0 {
		return fmt.Errorf("%d mod update(s) failed", failed)
	}
	return nil
}

// selectMods narrows mods to ids, keeping registry order. No ids selects all.
func selectMods(mods []mod.Mod, ids []string) ([]mod.Mod, error) {
	if len(ids) == 0 {
		return mods, nil
	}
	byID := make(map[string]mod.Mod, len(mods))
	for _, m := range mods {
		byID[m.ID] = m
	}
	selected := make([]mod.Mod, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("mod %q is not installed", id)
		}
		selected = append(selected, m)
	}
	return selected, nil
}

func printReport(w io.Writer, report *updater.Report) {
	if len(report.Results) == 0 {
		fmt.Fprintln(w, "No auto-update mods to check.")
		return
	}
	for _, res := range report.Results {
		switch res.Outcome {
		case updater.OutcomeUpdated:
			fmt.Fprintf(w, "  ✓ %s: %s -> %s\n", res.ID, res.CurrentVersion, res.LatestVersion)
		case updater.OutcomeAvailable:
			fmt.Fprintf(w, "  ↑ %s: update available %s -> %s\n", res.ID, res.CurrentVersion, res.LatestVersion)
		case updater.OutcomeUpToDate:
			fmt.Fprintf(w, "  = %s: up to date (%s)\n", res.ID, res.CurrentVersion)
		case updater.OutcomeMissing:
			fmt.Fprintf(w, "  ? %s: no longer in %s\n", res.ID, res.Repo)
		case updater.OutcomeFailed:
			fmt.Fprintf(w, "  ✗ %s: %s\n", res.ID, res.Error)
		}
	}
}
