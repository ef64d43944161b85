package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long a package directory must stay quiet before the
// watcher re-resolves it.
const DefaultDebounce = 300 * time.Millisecond

// Watcher keeps a registry in sync with package directories appearing in or
// disappearing from the roots while the host runs.
type Watcher struct {
	packages *Packages
	registry *mod.Registry
	fsw      *fsnotify.Watcher
	metrics  *metrics.Metrics
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer // mod ID -> debounce timer
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithMetrics keeps the installed mods gauge in step with the registry.
func WithMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// NewWatcher watches every existing root and the package directories in it.
func NewWatcher(packages *Packages, registry *mod.Registry, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		packages: packages,
		registry: registry,
		fsw:      fsw,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range packages.Roots() {
		if err := fsw.Add(root.Path); err != nil {
			log.Warn().Err(err).Str("root", root.Path).Msg("Not watching mods root")
			continue
		}
		entries, _ := os.ReadDir(root.Path)
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				_ = fsw.Add(filepath.Join(root.Path, e.Name()))
			}
		}
	}
	return w, nil
}

// Run processes events until ctx is cancelled, then releases the watcher and
// waits for in-flight re-resolutions.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		w.fsw.Close()
		w.mu.Lock()
		for id, timer := range w.pending {
			if timer.Stop() {
				w.wg.Done()
			}
			delete(w.pending, id)
		}
		w.mu.Unlock()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Mods watcher error")
		}
	}
}

// handle maps an event to the mod ID it concerns and schedules a sync.
func (w *Watcher) handle(event fsnotify.Event) {
	id, isPackageDir := w.idFor(event.Name)
	if id == "" {
		return
	}

	if isPackageDir && event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
		}
	}
	w.schedule(id)
}

// idFor returns the mod ID for a path directly inside a root or one level
// below it. isPackageDir is true when path is the package directory itself.
func (w *Watcher) idFor(path string) (id string, isPackageDir bool) {
	for _, root := range w.packages.Roots() {
		rel, err := filepath.Rel(root.Path, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if strings.HasPrefix(parts[0], ".") {
			return "", false
		}
		return parts[0], len(parts) == 1
	}
	return "", false
}

func (w *Watcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[id]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[id] == timer {
			delete(w.pending, id)
		}
		w.mu.Unlock()
		w.sync(id)
	})
	w.pending[id] = timer
}

// sync reconciles the registry entry for id with what is on disk. Dev mods
// are re-resolved when their files change; managed mods only change through
// the installer.
func (w *Watcher) sync(id string) {
	defer func() { w.metrics.SetInstalled(w.registry.Len()) }()

	if _, ok := w.packages.Dir(id); !ok {
		if w.registry.Has(id) {
			log.Info().Str("mod", id).Msg("Mod directory removed")
			w.registry.DeleteInstalledMod(id)
		}
		return
	}

	existing, ok := w.registry.Get(id)
	if !ok {
		w.registry.AddLocalMod(w.packages, id)
		if w.registry.Has(id) {
			log.Info().Str("mod", id).Msg("Picked up new mod")
		}
		return
	}
	if !existing.Local {
		return
	}

	m, err := w.packages.GetModLocal(id)
	if err != nil || m == nil {
		log.Warn().Err(err).Str("mod", id).Msg("Keeping previous dev mod entry")
		return
	}
	if *m != existing {
		w.registry.ReplaceInstalledMod(m)
		log.Info().Str("mod", id).Str("version", m.Version).Msg("Reloaded dev mod")
	}
}
