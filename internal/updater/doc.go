// Package updater implements the auto-update sweep. For every installed mod
// flagged auto-update it looks the mod up in its origin repository and, when
// the repository carries a newer version, installs it. Checks run
// concurrently on a bounded pool and fail independently; the outcome of a
// sweep is kept as a report next to the config file.
package updater
