package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aetherment-labs/aetherment/internal/local"
	"github.com/aetherment-labs/aetherment/internal/manifest"
	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/remote"
	"github.com/rs/zerolog/log"
)

// ErrNotInstalled is returned when uninstalling an unknown mod.
var ErrNotInstalled = errors.New("mod is not installed")

// Fetcher downloads a mod archive into destDir and returns its path.
type Fetcher interface {
	Download(ctx context.Context, m *mod.Mod, destDir string) (string, error)
}

// Installer installs mods into root.
type Installer struct {
	fetcher  Fetcher
	root     string
	registry *mod.Registry
	metrics  *metrics.Metrics
	now      func() time.Time

	mu sync.Mutex
}

// Option configures an Installer.
type Option func(*Installer)

// WithMetrics records installs in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Installer) {
		i.metrics = m
	}
}

// New creates an Installer writing packages under root.
func New(fetcher Fetcher, root string, registry *mod.Registry, opts ...Option) *Installer {
	i := &Installer{
		fetcher:  fetcher,
		root:     root,
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Root returns the managed mods root.
func (i *Installer) Root() string {
	return i.root
}

// DownloadMod downloads and installs m, replacing any installed version.
// The registry entry is replaced once the new files are in place. An
// existing install keeps its auto-update setting.
func (i *Installer) DownloadMod(ctx context.Context, m *mod.Mod) (err error) {
	defer func() { i.metrics.Install(err) }()

	if m == nil {
		return errors.New("nil mod")
	}
	if err := local.ValidateID(m.ID); err != nil {
		return err
	}
	if m.Repo.IsZero() {
		return fmt.Errorf("mod %s has no origin repository", m.ID)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := os.MkdirAll(i.root, 0755); err != nil {
		return fmt.Errorf("creating mods root %s: %w", i.root, err)
	}

	tmpDir, err := os.MkdirTemp("", "aetherment-download-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archive, err := i.fetcher.Download(ctx, m, tmpDir)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", m.ID, err)
	}

	staging, err := os.MkdirTemp(i.root, ".staging-"+m.ID+"-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	if err := remote.Extract(archive, staging); err != nil {
		return fmt.Errorf("extracting %s: %w", m.ID, err)
	}

	installed := *m
	installed.Local = false
	if prev, ok := i.registry.Get(m.ID); ok && !prev.Local {
		installed.AutoUpdate = prev.AutoUpdate
	}

	if err := writeManifest(staging, &installed); err != nil {
		return err
	}
	if err := local.WriteState(staging, &local.State{
		Repo:        installed.Repo,
		AutoUpdate:  installed.AutoUpdate,
		Version:     installed.Version,
		InstalledAt: i.now(),
	}); err != nil {
		return err
	}

	dest := filepath.Join(i.root, m.ID)
	if err := swapDir(staging, dest); err != nil {
		return fmt.Errorf("installing %s: %w", m.ID, err)
	}
	committed = true

	installed.Dir = dest
	i.registry.ReplaceInstalledMod(&installed)
	i.metrics.SetInstalled(i.registry.Len())
	log.Info().Str("mod", m.ID).Str("version", m.Version).Str("repo", m.Repo.String()).Msg("Installed mod")
	return nil
}

// Uninstall removes the package directory of id and drops it from the
// registry. Packages outside the managed root are only dropped from the
// registry.
func (i *Installer) Uninstall(id string) error {
	if err := local.ValidateID(id); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dir := filepath.Join(i.root, id)
	_, statErr := os.Stat(dir)
	if os.IsNotExist(statErr) && !i.registry.Has(id) {
		return fmt.Errorf("%s: %w", id, ErrNotInstalled)
	}
	if statErr == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}

	i.registry.DeleteInstalledMod(id)
	i.metrics.SetInstalled(i.registry.Len())
	log.Info().Str("mod", id).Msg("Uninstalled mod")
	return nil
}

// SetAutoUpdate toggles auto-update for an installed mod and persists it in
// the install state.
func (i *Installer) SetAutoUpdate(id string, enabled bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	m, ok := i.registry.Get(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotInstalled)
	}
	if m.Local || m.Dir == "" {
		return fmt.Errorf("mod %s is a local development mod and cannot auto-update", id)
	}

	st, err := local.ReadState(m.Dir)
	if err != nil {
		return err
	}
	if st == nil {
		st = &local.State{Repo: m.Repo, Version: m.Version, InstalledAt: i.now()}
	}
	st.AutoUpdate = enabled
	if err := local.WriteState(m.Dir, st); err != nil {
		return err
	}
	return i.registry.SetAutoUpdate(id, enabled)
}

func writeManifest(dir string, m *mod.Mod) error {
	data, err := json.Marshal(manifest.FromMod(m))
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	for _, name := range manifest.FileNames {
		os.Remove(filepath.Join(dir, name))
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.FileNames[0]), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// swapDir moves staging to dest, keeping the previous dest until the new one
// is in place and restoring it on failure.
func swapDir(staging, dest string) error {
	backup := ""
	if _, err := os.Stat(dest); err == nil {
		backup = filepath.Join(filepath.Dir(dest), fmt.Sprintf(".old-%s-%d", filepath.Base(dest), time.Now().UnixNano()))
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("moving previous install aside: %w", err)
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		if backup != "" {
			if rbErr := os.Rename(backup, dest); rbErr != nil {
				return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
			}
		}
		return err
	}

	if backup != "" {
		os.RemoveAll(backup)
	}
	return nil
}
