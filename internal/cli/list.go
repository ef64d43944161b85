package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/updater"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed mods",
	Long:  `List installed mods with their origin and the result of the last update check.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed mod for display.
type listEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Repo       string `json:"repo,omitempty"`
	AutoUpdate bool   `json:"auto_update"`
	Local      bool   `json:"local"`
	Latest     string `json:"latest,omitempty"`
	LastCheck  string `json:"last_check,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{})
	if err != nil {
		return err
	}

	mods := a.Registry().Snapshot()
	if len(mods) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No mods installed yet.")
		return nil
	}

	report, err := updater.LoadReport(a.Dir())
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring unreadable update report")
	}
	entries := buildListEntries(mods, report)

	if listJSON {
		return printListJSON(cmd, entries)
	}
	return printListTable(cmd, entries)
}

func buildListEntries(mods []mod.Mod, report *updater.Report) []listEntry {
	entries := make([]listEntry, 0, len(mods))
	for _, m := range mods {
		entry := listEntry{
			ID:         m.ID,
			Name:       m.Name,
			Version:    m.Version,
			AutoUpdate: m.AutoUpdate,
			Local:      m.Local,
		}
		if !m.Repo.IsZero() {
			entry.Repo = m.Repo.String()
		}
		if report != nil {
			if res, ok := report.Find(m.ID); ok {
				entry.Latest = res.LatestVersion
				entry.LastCheck = string(res.Outcome)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tREPO\tAUTO-UPDATE\tLAST CHECK")
	for _, e := range entries {
		repo := e.Repo
		if e.Local {
			repo = "(local)"
		} else if repo == "" {
			repo = "-"
		}
		auto := "no"
		if e.AutoUpdate {
			auto = "yes"
		}
		check := e.LastCheck
		if check == "" {
			check = "-"
		} else if e.Latest != "" && e.Latest != e.Version {
			check += " (" + e.Latest + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, orDash(e.Version), repo, auto, check)
	}
	return w.Flush()
}

func printListJSON(cmd *cobra.Command, entries []listEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
