package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aetherment-labs/aetherment/internal/command"
	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/aetherment-labs/aetherment/internal/remote/remotetest"
	"github.com/aetherment-labs/aetherment/internal/updater"
)

type panel struct{ shown int }

func (p *panel) Show() { p.shown++ }

// installMod writes a package into the mods dir as if installed from repo.
func installMod(t *testing.T, dir, id, version string, autoUpdate bool) {
	t.Helper()
	pkg := filepath.Join(dir, ModsDir, id)
	if err := os.MkdirAll(pkg, 0755); err != nil {
		t.Fatal(err)
	}
	meta := `{"id":"` + id + `","version":"` + version + `","repo":{"owner":"Sevii77","name":"mods","branch":"v2"}}`
	if err := os.WriteFile(filepath.Join(pkg, "meta.json"), []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}
	state, _ := json.Marshal(map[string]any{
		"repo":        map[string]string{"owner": "Sevii77", "name": "mods", "branch": "v2"},
		"auto_update": autoUpdate,
		"version":     version,
	})
	if err := os.WriteFile(filepath.Join(pkg, ".install.json"), state, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNew_PopulatesRegistry(t *testing.T) {
	dir := t.TempDir()
	installMod(t, dir, "accent", "1.0.0", true)
	installMod(t, dir, "frames", "2.0.0", false)

	a, err := New(Options{Dir: dir, SkipUpdateCheck: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := a.Registry().Len(); got != 2 {
		t.Errorf("registry size = %d, want 2", got)
	}
	if repos := a.Store().Repos(); len(repos) != 1 || !repos[0].Equal(config.BuiltinRepo) {
		t.Errorf("Repos() = %v, want built-in only", repos)
	}
}

func TestStartClose_UpdatesAndSaves(t *testing.T) {
	dir := t.TempDir()
	installMod(t, dir, "accent", "1.0.0", true)
	installMod(t, dir, "frames", "1.0.0", false)

	repo := remotetest.NewRepo(t)
	archive := remotetest.TarGz(t, map[string]string{"ui/frame.tex": "v2"})
	repo.Put("Sevii77/mods/v2/accent/meta.json", []byte(`{"id":"accent","version":"1.1.0","sha256":"`+remotetest.SHA256(archive)+`"}`))
	repo.Put("Sevii77/mods/v2/accent/accent.tar.gz", archive)
	repo.Put("Sevii77/mods/v2/frames/meta.json", []byte(`{"id":"frames","version":"9.0.0"}`))

	main, finder := &panel{}, &panel{}
	host := command.NewLineHost()
	a, err := New(Options{
		Dir:         dir,
		RawURL:      repo.URL(),
		MainPanel:   main,
		FinderPanel: finder,
		Host:        host,
		Metrics:     metrics.New(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !host.Execute("/aetherment") || !host.Execute("/texfinder") {
		t.Fatal("commands should be registered after Start")
	}
	if main.shown != 1 || finder.shown != 1 {
		t.Errorf("main=%d finder=%d, want 1/1", main.shown, finder.shown)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if host.Execute("/aetherment") {
		t.Error("commands should be unregistered after Close")
	}

	got, ok := a.Registry().Get("accent")
	if !ok || got.Version != "1.1.0" {
		t.Errorf("accent = %+v, want version 1.1.0", got)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, ModsDir, "accent", "ui", "frame.tex")); string(data) != "v2" {
		t.Errorf("installed file = %q, want v2", data)
	}
	if repo.Hits("Sevii77/mods/v2/frames/meta.json") != 0 {
		t.Error("mods without auto-update must not be checked")
	}

	report, err := updater.LoadReport(dir)
	if err != nil || report == nil {
		t.Fatalf("LoadReport = %v, %v", report, err)
	}
	if report.Count(updater.OutcomeUpdated) != 1 {
		t.Errorf("report = %+v, want one update", report)
	}

	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		t.Errorf("config not saved: %v", err)
	}

	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNew_LocalModsRoot(t *testing.T) {
	dir := t.TempDir()
	dev := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dev, "wip"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dev, "wip", "meta.json"), []byte(`{"id":"wip","version":"0.1.0"}`), 0644); err != nil {
		t.Fatal(err)
	}

	store := config.Open(dir)
	if err := store.Set("local_mods", "true"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("local_mods_path", dev); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	a, err := New(Options{Dir: dir, SkipUpdateCheck: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, ok := a.Registry().Get("wip")
	if !ok {
		t.Fatal("dev mod not registered")
	}
	if !m.Local || m.AutoUpdate {
		t.Errorf("dev mod = %+v, want local without auto-update", m)
	}
}

func TestClose_CancelsSweepAfterGrace(t *testing.T) {
	dir := t.TempDir()
	installMod(t, dir, "accent", "1.0.0", true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	a, err := New(Options{Dir: dir, RawURL: srv.URL, ShutdownGrace: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if took := time.Since(start); took > 10*time.Second {
		t.Errorf("Close took %v, want it bounded by the grace period", took)
	}

	report := a.Checker().Last()
	if report == nil || report.Count(updater.OutcomeFailed) != 1 {
		t.Fatalf("report = %+v, want the hung check recorded as failed", report)
	}
	if got, _ := a.Registry().Get("accent"); got.Version != "1.0.0" {
		t.Errorf("accent version = %q, want 1.0.0 kept", got.Version)
	}
}

func TestClose_KeepsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	content := `{"repos":[{"owner":"me","name":"mods"}],"link_options":"yes"}`
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := New(Options{Dir: dir, SkipUpdateCheck: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != content {
		t.Errorf("config rewritten to %s", data)
	}
	if !strings.Contains(string(data), `"owner":"me"`) {
		t.Error("user repo lost")
	}
}
