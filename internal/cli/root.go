package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/branding"
	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/aetherment-labs/aetherment/internal/updater"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs mods from GitHub repositories, keeps auto-update mods current,
and manages the settings and repository list shared with the plugin.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr(), verbose)

		// Skip the notice for commands that check or manage their own state.
		name := cmd.Name()
		if name == "update" || name == "run" || name == "version" {
			return
		}
		printStaleNotice(cmd.ErrOrStderr(), configDir())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Config directory (default $"+branding.EnvVar("HOME")+" or ~/"+branding.HomeDir()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}

func setupLogging(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func configDir() string {
	if homeDir != "" {
		return homeDir
	}
	return config.Dir()
}

// mirrorURL returns the raw content mirror from <PREFIX>_MIRROR, if set.
func mirrorURL() string {
	return os.Getenv(branding.EnvVar("MIRROR"))
}

// openApp builds the application context for the selected config dir.
// Commands other than run never sweep on their own.
func openApp(opts app.Options) (*app.App, error) {
	opts.Dir = configDir()
	opts.RawURL = mirrorURL()
	opts.SkipUpdateCheck = true
	return app.New(opts)
}

// printStaleNotice reminds the user when the last update check is old or
// left failures behind. It never touches the network.
func printStaleNotice(w io.Writer, dir string) {
	report, err := updater.LoadReport(dir)
	if err != nil || report == nil {
		return
	}
	if failed := report.Count(updater.OutcomeFailed); failed > 0 {
		fmt.Fprintf(w, "%d mod update(s) failed in the last check. Run '%s update' to retry.\n", failed, branding.CLIName())
		return
	}
	if updater.IsStale(report, updater.DefaultReportMaxAge) {
		fmt.Fprintf(w, "Mods were last checked for updates %s. Run '%s update'.\n", report.CheckedAt.Format(time.DateOnly), branding.CLIName())
	}
}
