// Package mod defines the mod and repository model together with the
// in-memory registry of installed mods. The registry is safe for concurrent
// use: background update sweeps, the local mods watcher and CLI readers all
// share one instance.
package mod
