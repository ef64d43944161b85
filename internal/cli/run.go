package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/command"
	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	runWatch       bool
	runNoUpdate    bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the plugin host loop",
	Long: `Start the application the way the plugin host does: load settings and
installed mods, update auto-update mods in the background and register the
chat commands.

Commands are read from stdin, one per line:

  /aetherment   open the main window
  /materialui   same as /aetherment
  /texfinder    open the texture finder

Settings are saved when stdin closes or on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", true, "Track mods added to or removed from the mods directories")
	runCmd.Flags().BoolVar(&runNoUpdate, "no-update", false, "Skip the startup update check")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

// consolePanel stands in for a UI window by announcing it on out.
type consolePanel struct {
	name string
	out  io.Writer
}

func (p consolePanel) Show() {
	fmt.Fprintf(p.out, "[%s] opened\n", p.name)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	host := command.NewLineHost()
	m := metrics.New()

	a, err := app.New(app.Options{
		Dir:             configDir(),
		RawURL:          mirrorURL(),
		MainPanel:       consolePanel{name: "Aetherment", out: out},
		FinderPanel:     consolePanel{name: "Texture Finder", out: out},
		Host:            host,
		Metrics:         m,
		SkipUpdateCheck: runNoUpdate,
		Watch:           runWatch,
	})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		a.Close()
		return err
	}

	if runMetricsAddr != "" {
		srv := serveMetrics(runMetricsAddr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintf(out, "%d mods loaded. Commands:\n", a.Registry().Len())
	host.Help(out)

	runErr := host.Run(ctx, cmd.InOrStdin(), out)
	if err := a.Close(); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return runErr
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
