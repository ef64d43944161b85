// Package cli defines the Cobra command tree for the aetherment CLI. Each
// file in this package registers one top-level command (run, install, repo,
// etc.) with the root command. Commands build an app.App for the selected
// config directory and only handle flag parsing, I/O formatting, and user
// interaction.
package cli
