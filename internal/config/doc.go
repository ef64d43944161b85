// Package config manages user settings stored at ~/.aetherment/config.json.
// It loads and saves the settings document, keeps the list of known mod
// repositories, and exposes scalar settings by key for the CLI.
//
// The built-in styling repository is never part of the persisted document;
// it only appears in the view returned by Store.Repos.
package config
