package manifest

import (
	"github.com/aetherment-labs/aetherment/internal/mod"
)

// FileNames lists recognized manifest file names in priority order.
var FileNames = []string{"meta.json", "meta.yaml", "meta.yml"}

// Manifest describes a mod package.
type Manifest struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Version     string        `yaml:"version" json:"version"`
	Author      string        `yaml:"author,omitempty" json:"author,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Repo        *mod.RepoInfo `yaml:"repo,omitempty" json:"repo,omitempty"`

	// Archive names the package archive next to the manifest in the
	// repository. Defaults to <id>.tar.gz.
	Archive string `yaml:"archive,omitempty" json:"archive,omitempty"`
	// SHA256 is the hex digest of the archive, checked after download.
	SHA256 string `yaml:"sha256,omitempty" json:"sha256,omitempty"`

	AutoUpdate *bool `yaml:"auto_update,omitempty" json:"auto_update,omitempty"`
}

// ArchiveName returns the archive file name, applying the default.
func (m *Manifest) ArchiveName() string {
	if m.Archive != "" {
		return m.Archive
	}
	return m.ID + ".tar.gz"
}

// ToMod converts the manifest into a Mod. Auto-update defaults to true.
func (m *Manifest) ToMod() *mod.Mod {
	out := &mod.Mod{
		ID:          m.ID,
		Name:        m.Name,
		Author:      m.Author,
		Description: m.Description,
		Version:     m.Version,
		Archive:     m.ArchiveName(),
		Checksum:    m.SHA256,
		AutoUpdate:  true,
	}
	if out.Name == "" {
		out.Name = m.ID
	}
	if m.Repo != nil {
		out.Repo = *m.Repo
		if out.Repo.Branch == "" {
			out.Repo.Branch = mod.DefaultBranch
		}
	}
	if m.AutoUpdate != nil {
		out.AutoUpdate = *m.AutoUpdate
	}
	return out
}

// FromMod builds the manifest written next to an installed package.
func FromMod(m *mod.Mod) *Manifest {
	out := &Manifest{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		Author:      m.Author,
		Description: m.Description,
		Archive:     m.Archive,
		SHA256:      m.Checksum,
	}
	if !m.Repo.IsZero() {
		repo := m.Repo
		out.Repo = &repo
	}
	return out
}
