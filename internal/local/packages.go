package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aetherment-labs/aetherment/internal/manifest"
	"github.com/aetherment-labs/aetherment/internal/mod"
)

// ErrNotFound is returned when no root holds a package with the given ID.
var ErrNotFound = errors.New("package not found")

// Root is a directory holding one package per subdirectory.
type Root struct {
	Path string
	Dev  bool // developer folder: packages are never auto-updated
}

// Packages resolves installed packages across roots. Earlier roots take
// priority when the same ID exists in several.
type Packages struct {
	roots []Root
}

// NewPackages returns a resolver over the given roots.
func NewPackages(roots ...Root) *Packages {
	return &Packages{roots: roots}
}

// Roots returns the configured roots in priority order.
func (p *Packages) Roots() []Root {
	return append([]Root{}, p.roots...)
}

// InstallRoot returns the first non-dev root, where managed packages go.
func (p *Packages) InstallRoot() (string, error) {
	for _, r := range p.roots {
		if !r.Dev {
			return r.Path, nil
		}
	}
	return "", errors.New("no install root configured")
}

// GetMods returns the IDs of all packages that have a manifest. Roots that
// do not exist are skipped.
func (p *Packages) GetMods() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	for _, root := range p.roots {
		entries, err := os.ReadDir(root.Path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root.Path, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if !entry.IsDir() || strings.HasPrefix(name, ".") || seen[name] {
				continue
			}
			if _, err := manifest.Find(filepath.Join(root.Path, name)); err != nil {
				continue
			}
			seen[name] = true
			ids = append(ids, name)
		}
	}
	return ids, nil
}

// GetModLocal resolves the installed package with the given ID.
func (p *Packages) GetModLocal(id string) (*mod.Mod, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	for _, root := range p.roots {
		dir := filepath.Join(root.Path, id)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		return resolve(dir, id, root.Dev)
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Dir returns the directory of the installed package with the given ID.
func (p *Packages) Dir(id string) (string, bool) {
	if ValidateID(id) != nil {
		return "", false
	}
	for _, root := range p.roots {
		dir := filepath.Join(root.Path, id)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// ValidateID rejects IDs that cannot name a package directory.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid mod id %q", id)
	}
	return nil
}

func resolve(dir, id string, dev bool) (*mod.Mod, error) {
	m, err := manifest.ParseDir(dir)
	if err != nil {
		return nil, err
	}
	if m.ID != id {
		return nil, fmt.Errorf("manifest in %s declares id %q, expected %q", dir, m.ID, id)
	}

	out := m.ToMod()
	out.Dir = dir
	out.Local = dev

	st, err := ReadState(dir)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", id, err)
	}
	if st != nil {
		if !st.Repo.IsZero() {
			out.Repo = st.Repo
		}
		out.AutoUpdate = st.AutoUpdate
	}
	if dev || out.Repo.IsZero() {
		out.AutoUpdate = false
	}
	return out, nil
}
