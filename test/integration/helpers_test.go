//go:build integration

package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/remote/remotetest"
)

// testEnv holds an isolated config directory and a fake GitHub raw server.
type testEnv struct {
	HomeDir string // AETHERMENT_HOME, holds config.json and mods/
	ModsDir string
	Repo    *remotetest.Repo
}

// setupTestEnv creates a temp config dir and points AETHERMENT_HOME at it so
// nothing touches the real home directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir: t.TempDir(),
		Repo:    remotetest.NewRepo(t),
	}
	env.ModsDir = filepath.Join(env.HomeDir, app.ModsDir)
	t.Setenv("AETHERMENT_HOME", env.HomeDir)
	t.Setenv("GITHUB_TOKEN", "")
	return env
}

// publish serves version of mod id from repo ("owner/name/branch") with a
// tar.gz archive holding files.
func (e *testEnv) publish(t *testing.T, repo, id, version string, files map[string]string) {
	t.Helper()
	archive := remotetest.TarGz(t, files)
	base := repo + "/" + id + "/"
	e.Repo.Put(base+"meta.json", []byte(`{"id":"`+id+`","name":"`+strings.ToUpper(id)+`","version":"`+version+`","sha256":"`+remotetest.SHA256(archive)+`"}`))
	e.Repo.Put(base+id+".tar.gz", archive)
}

// newApp builds an App against the fake server.
func (e *testEnv) newApp(t *testing.T, opts app.Options) *app.App {
	t.Helper()
	opts.Dir = e.HomeDir
	opts.RawURL = e.Repo.URL()
	a, err := app.New(opts)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a
}

// waitFor polls cond until it holds or five seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}
