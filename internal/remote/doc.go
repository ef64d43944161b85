// Package remote talks to mod repositories hosted on GitHub. A repository
// serves one directory per mod on a branch, each holding a meta.json
// manifest and the package archive it names. The client looks manifests up,
// downloads archives, verifies their checksums and unpacks them.
package remote
