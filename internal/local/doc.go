// Package local finds and resolves mod packages installed on disk. Packages
// live one per directory, named by mod ID, under one or more roots: the
// managed install root and, optionally, a developer mods folder. Each
// managed package carries a small install-state file recording where it
// came from and whether it should auto-update.
package local
