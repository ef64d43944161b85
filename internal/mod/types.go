package mod

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBranch is used when a repository reference omits its branch.
const DefaultBranch = "main"

// RepoInfo identifies a remote package source on GitHub.
type RepoInfo struct {
	Owner  string `json:"owner" mapstructure:"owner"`
	Name   string `json:"name" mapstructure:"name"`
	Branch string `json:"branch" mapstructure:"branch"`
}

// String renders the repo as owner/name@branch.
func (r RepoInfo) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Name, r.Branch)
}

// IsZero reports whether no repository is set.
func (r RepoInfo) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// Equal compares repositories case-insensitively on owner and name, as GitHub does.
func (r RepoInfo) Equal(other RepoInfo) bool {
	return strings.EqualFold(r.Owner, other.Owner) &&
		strings.EqualFold(r.Name, other.Name) &&
		r.Branch == other.Branch
}

// ParseRepo parses "owner/name" or "owner/name@branch".
func ParseRepo(s string) (RepoInfo, error) {
	ref, branch, hasBranch := strings.Cut(strings.TrimSpace(s), "@")
	owner, name, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepoInfo{}, fmt.Errorf("invalid repository %q: expected owner/name[@branch]", s)
	}
	if !hasBranch {
		branch = DefaultBranch
	}
	if branch == "" {
		return RepoInfo{}, fmt.Errorf("invalid repository %q: empty branch", s)
	}
	return RepoInfo{Owner: owner, Name: name, Branch: branch}, nil
}

// Mod is an installable package identified by a stable ID.
type Mod struct {
	ID          string
	Name        string
	Author      string
	Description string
	Version     string
	Repo        RepoInfo
	AutoUpdate  bool

	// Archive and Checksum describe the downloadable package for remote mods.
	Archive  string
	Checksum string

	// Dir is the on-disk location of an installed mod, empty for remote lookups.
	Dir   string
	Local bool // true when resolved from a dev mods folder
}

// InstalledProvider reports the IDs of packages installed on disk.
type InstalledProvider interface {
	GetMods() ([]string, error)
}

// LocalResolver resolves an installed package by ID. A missing or invalid
// package yields an error.
type LocalResolver interface {
	GetModLocal(id string) (*Mod, error)
}

// RemoteRepository looks mods up in their origin repository. A nil Mod with
// a nil error means the repository has no such mod.
type RemoteRepository interface {
	GetMod(ctx context.Context, repo RepoInfo, id string) (*Mod, error)
}
