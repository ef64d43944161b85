package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aetherment-labs/aetherment/internal/mod"
)

// StateFile is the install-state file name inside a package directory.
const StateFile = ".install.json"

// State records how a package was installed.
type State struct {
	Repo        mod.RepoInfo `json:"repo"`
	AutoUpdate  bool         `json:"auto_update"`
	Version     string       `json:"version"`
	InstalledAt time.Time    `json:"installed_at"`
}

// ReadState reads the install state of the package in dir.
// Returns nil, nil if the package has no state file.
func ReadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading install state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing install state: %w", err)
	}
	return &st, nil
}

// WriteState writes the install state of the package in dir.
func WriteState(dir string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling install state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StateFile), data, 0644); err != nil {
		return fmt.Errorf("writing install state: %w", err)
	}
	return nil
}
