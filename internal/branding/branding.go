// Package branding provides compile-time identity values for the CLI.
//
// Values live in branding.yaml next to this file and are baked into the
// binary with //go:embed.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName       string `yaml:"cli_name"`
	DisplayName   string `yaml:"display_name"`
	Description   string `yaml:"description"`
	HomeDir       string `yaml:"home_dir"`
	EnvPrefix     string `yaml:"env_prefix"`
	GoModule      string `yaml:"go_module"`
	RawContentURL string `yaml:"raw_content_url"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is empty.
		defaults = brand{
			CLIName:       "aetherment",
			DisplayName:   "Aetherment",
			Description:   "Mod installer and updater for the Aetherment plugin",
			HomeDir:       ".aetherment",
			EnvPrefix:     "AETHERMENT",
			GoModule:      "github.com/aetherment-labs/aetherment",
			RawContentURL: "https://raw.githubusercontent.com",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "aetherment").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".aetherment").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "AETHERMENT").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// RawContentURL returns the base URL serving raw repository files.
func RawContentURL() string { load(); return defaults.RawContentURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "AETHERMENT_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
