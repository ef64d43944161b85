package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aetherment-labs/aetherment/internal/local"
	"github.com/aetherment-labs/aetherment/internal/manifest"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/rs/zerolog/log"
)

// excludedNames are skipped when copying a package directory.
var excludedNames = map[string]bool{
	".git":          true,
	".DS_Store":     true,
	local.StateFile: true,
}

// InstallDir installs the package in srcDir, e.g. an unpacked download or a
// mod under development, into the mods root. The package keeps the repo
// declared in its manifest; without one it never auto-updates.
func (i *Installer) InstallDir(srcDir string) (m *mod.Mod, err error) {
	defer func() { i.metrics.Install(err) }()

	mf, err := manifest.ParseDir(srcDir)
	if err != nil {
		return nil, err
	}
	if err := local.ValidateID(mf.ID); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := os.MkdirAll(i.root, 0755); err != nil {
		return nil, fmt.Errorf("creating mods root %s: %w", i.root, err)
	}
	dest := filepath.Join(i.root, mf.ID)
	if same, _ := samePath(srcDir, dest); same {
		return nil, fmt.Errorf("%s is already the installed package", srcDir)
	}

	staging, err := os.MkdirTemp(i.root, ".staging-"+mf.ID+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	if err := copyDir(srcDir, staging); err != nil {
		return nil, fmt.Errorf("copying %s: %w", srcDir, err)
	}

	m = mf.ToMod()
	if m.Repo.IsZero() {
		m.AutoUpdate = false
	} else if err := local.WriteState(staging, &local.State{
		Repo:        m.Repo,
		AutoUpdate:  m.AutoUpdate,
		Version:     m.Version,
		InstalledAt: i.now(),
	}); err != nil {
		return nil, err
	}

	if err := swapDir(staging, dest); err != nil {
		return nil, fmt.Errorf("installing %s: %w", mf.ID, err)
	}
	committed = true

	m.Dir = dest
	i.registry.ReplaceInstalledMod(m)
	i.metrics.SetInstalled(i.registry.Len())
	log.Info().Str("mod", m.ID).Str("version", m.Version).Str("from", srcDir).Msg("Installed mod from directory")
	return m, nil
}

// copyDir recursively copies src to dst, excluding entries in excludedNames.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if excludedNames[entry.Name()] {
			continue
		}

		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
		// Symlinks and special files are not part of a package.
	}

	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, srcInfo.Mode())
}

func samePath(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
