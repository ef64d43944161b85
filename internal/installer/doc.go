// Package installer downloads mod packages from their repositories and
// installs them into the managed mods root, keeping the registry and the
// per-package install state in step. Installs are serialized.
package installer
