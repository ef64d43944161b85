// Package app wires the config store, mod registry, installer, update
// checker and command dispatcher into one context owned by the host.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aetherment-labs/aetherment/internal/command"
	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/aetherment-labs/aetherment/internal/installer"
	"github.com/aetherment-labs/aetherment/internal/local"
	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/remote"
	"github.com/aetherment-labs/aetherment/internal/updater"
	"github.com/rs/zerolog/log"
)

const (
	// ModsDir is the directory under the config dir holding installed mods.
	ModsDir = "mods"
	// DefaultShutdownGrace is how long Close lets a running sweep finish
	// before cancelling it.
	DefaultShutdownGrace = time.Minute
)

// Options configures an App. Zero values select defaults.
type Options struct {
	// Dir is the config directory. Defaults to config.Dir().
	Dir string

	// RawURL overrides the raw content base URL of mod repositories.
	RawURL     string
	HTTPClient *http.Client

	// MainPanel and FinderPanel receive show signals from commands.
	MainPanel   command.Panel
	FinderPanel command.Panel
	// Host receives the command triggers on Start. Nil skips registration.
	Host command.Host

	Metrics     *metrics.Metrics
	Concurrency int
	// Force reinstalls auto-update mods even when versions match.
	Force bool
	// CheckOnly makes sweeps report available updates without installing.
	CheckOnly bool
	// SkipUpdateCheck disables the startup sweep.
	SkipUpdateCheck bool
	// Watch keeps the registry in sync with the mods directories.
	Watch bool
	// ShutdownGrace bounds how long Close waits for the sweep. Defaults to
	// DefaultShutdownGrace.
	ShutdownGrace time.Duration
}

// App is the application context. Construct it with New, then Start and
// finally Close it.
type App struct {
	opts Options

	store      *config.Store
	registry   *mod.Registry
	packages   *local.Packages
	remote     *remote.Client
	installer  *installer.Installer
	checker    *updater.Checker
	dispatcher *command.Dispatcher
	metrics    *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// New loads the config and builds every component. The registry is
// populated from the mods directories.
func New(opts Options) (*App, error) {
	if opts.Dir == "" {
		opts.Dir = config.Dir()
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}

	store := config.Open(opts.Dir)
	if err := store.Load(); err != nil {
		return nil, err
	}
	cfg := store.Config()

	roots := Roots(opts.Dir, cfg)
	modsRoot := roots[0].Path
	if err := os.MkdirAll(modsRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating mods directory: %w", err)
	}

	var remoteOpts []remote.Option
	if opts.RawURL != "" {
		remoteOpts = append(remoteOpts, remote.WithBaseURL(opts.RawURL))
	}
	if opts.HTTPClient != nil {
		remoteOpts = append(remoteOpts, remote.WithHTTPClient(opts.HTTPClient))
	}

	a := &App{
		opts:     opts,
		store:    store,
		registry: mod.NewRegistry(),
		packages: local.NewPackages(roots...),
		remote:   remote.New(remoteOpts...),
		metrics:  opts.Metrics,
	}
	a.installer = installer.New(a.remote, modsRoot, a.registry, installer.WithMetrics(a.metrics))
	a.checker = updater.NewChecker(a.remote, a.installer,
		updater.WithMetrics(a.metrics),
		updater.WithConcurrency(opts.Concurrency),
		updater.WithReportDir(opts.Dir),
		updater.WithForce(opts.Force),
		updater.WithCheckOnly(opts.CheckOnly),
	)
	a.dispatcher = command.NewDispatcher(panelOrLog(opts.MainPanel, "main"), panelOrLog(opts.FinderPanel, "texture finder"))

	if err := a.registry.Populate(context.Background(), a.packages, a.packages); err != nil {
		return nil, fmt.Errorf("listing installed mods: %w", err)
	}
	a.metrics.SetInstalled(a.registry.Len())
	return a, nil
}

// Roots returns the package roots for a config dir: the managed mods
// directory, then the developer folder when local mods are enabled.
func Roots(dir string, cfg config.Config) []local.Root {
	roots := []local.Root{{Path: filepath.Join(dir, ModsDir)}}
	if cfg.LocalMods && cfg.LocalModsPath != "" {
		roots = append(roots, local.Root{Path: cfg.LocalModsPath, Dev: true})
	}
	return roots
}

// Start launches the update sweep over the installed mods, registers the
// command triggers and starts the watcher. Background work stops when ctx
// is cancelled or Close is called.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if !a.opts.SkipUpdateCheck {
		a.checker.Start(ctx, a.registry.Snapshot())
	}

	if a.opts.Host != nil {
		if err := a.dispatcher.Register(a.opts.Host); err != nil {
			cancel()
			a.checker.Wait()
			return err
		}
	}

	if a.opts.Watch {
		w, err := local.NewWatcher(a.packages, a.registry, local.WithMetrics(a.metrics))
		if err != nil {
			log.Warn().Err(err).Msg("Mods watcher unavailable")
		} else {
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				w.Run(ctx)
			}()
		}
	}
	return nil
}

// Close unregisters the commands, lets a running sweep finish within the
// shutdown grace, cancels background work, waits for it and saves the
// config. Cancelling the ctx given to Start aborts the sweep right away.
// Calling Close more than once is a no-op.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel := a.cancel
	a.mu.Unlock()

	if a.opts.Host != nil {
		a.dispatcher.Unregister(a.opts.Host)
	}

	done := make(chan struct{})
	go func() {
		a.checker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.opts.ShutdownGrace):
		log.Warn().Dur("grace", a.opts.ShutdownGrace).Msg("Update sweep still running, cancelling it")
	}

	if cancel != nil {
		cancel()
	}
	<-done
	a.wg.Wait()

	if err := a.store.Save(); err != nil {
		if errors.Is(err, config.ErrInvalidFile) {
			log.Warn().Err(err).Msg("Settings not saved")
			return nil
		}
		return err
	}
	return nil
}

// Store returns the config store.
func (a *App) Store() *config.Store { return a.store }

// Registry returns the mod registry.
func (a *App) Registry() *mod.Registry { return a.registry }

// Packages returns the local package roots.
func (a *App) Packages() *local.Packages { return a.packages }

// Remote returns the repository client.
func (a *App) Remote() *remote.Client { return a.remote }

// Installer returns the installer.
func (a *App) Installer() *installer.Installer { return a.installer }

// Checker returns the update checker.
func (a *App) Checker() *updater.Checker { return a.checker }

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *command.Dispatcher { return a.dispatcher }

// Dir returns the config directory.
func (a *App) Dir() string { return a.opts.Dir }

type logPanel string

func (p logPanel) Show() {
	log.Info().Str("panel", string(p)).Msg("Show panel")
}

func panelOrLog(p command.Panel, name string) command.Panel {
	if p != nil {
		return p
	}
	return logPanel(name)
}
