// Package manifest handles parsing and validation of mod manifests
// (meta.json or meta.yaml at the root of a mod package). Manifests are
// validated against an embedded JSON Schema before use.
package manifest
