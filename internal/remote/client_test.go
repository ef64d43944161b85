package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/remote/remotetest"
)

var testRepo = mod.RepoInfo{Owner: "Sevii77", Name: "mods", Branch: "v2"}

func TestGetMod(t *testing.T) {
	repo := remotetest.NewRepo(t)
	repo.Put("Sevii77/mods/v2/accent/meta.json", []byte(`{"id":"accent","name":"Accent","version":"2.1.0","auto_update":true}`))

	c := New(WithBaseURL(repo.URL()), WithToken(""))
	m, err := c.GetMod(context.Background(), testRepo, "accent")
	if err != nil {
		t.Fatalf("GetMod: %v", err)
	}
	if m == nil {
		t.Fatal("expected a mod")
	}
	if m.Version != "2.1.0" || m.Name != "Accent" {
		t.Errorf("mod = %+v", m)
	}
	if m.Repo != testRepo {
		t.Errorf("Repo = %+v, want %+v", m.Repo, testRepo)
	}
	if m.Archive != "accent.tar.gz" {
		t.Errorf("Archive = %q, want default", m.Archive)
	}
}

func TestGetMod_NotFound(t *testing.T) {
	repo := remotetest.NewRepo(t)
	c := New(WithBaseURL(repo.URL()))

	m, err := c.GetMod(context.Background(), testRepo, "missing")
	if err != nil || m != nil {
		t.Errorf("GetMod(missing) = %v, %v; want nil, nil", m, err)
	}
}

func TestGetMod_RateLimited(t *testing.T) {
	repo := remotetest.NewRepo(t)
	repo.Fail("Sevii77/mods/v2/x/meta.json", http.StatusForbidden)
	c := New(WithBaseURL(repo.URL()))

	_, err := c.GetMod(context.Background(), testRepo, "x")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestGetMod_BadManifest(t *testing.T) {
	repo := remotetest.NewRepo(t)
	repo.Put("Sevii77/mods/v2/x/meta.json", []byte(`{"id":"y","version":"1"}`))
	repo.Put("Sevii77/mods/v2/z/meta.json", []byte(`{"version":"1"}`))
	c := New(WithBaseURL(repo.URL()))

	if _, err := c.GetMod(context.Background(), testRepo, "x"); err == nil {
		t.Error("expected error for id mismatch")
	}
	if _, err := c.GetMod(context.Background(), testRepo, "z"); err == nil {
		t.Error("expected error for invalid manifest")
	}
}

func TestGetMod_SendsToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithToken("secret"))
	c.GetMod(context.Background(), testRepo, "x")
	if auth != "token secret" {
		t.Errorf("Authorization = %q, want %q", auth, "token secret")
	}
}

func TestGetMod_Cancelled(t *testing.T) {
	repo := remotetest.NewRepo(t)
	c := New(WithBaseURL(repo.URL()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetMod(ctx, testRepo, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestDownload(t *testing.T) {
	archive := remotetest.TarGz(t, map[string]string{"ui/a.tex": "data"})
	repo := remotetest.NewRepo(t)
	repo.Put("Sevii77/mods/v2/accent/accent.tar.gz", archive)
	c := New(WithBaseURL(repo.URL()))

	m := &mod.Mod{ID: "accent", Repo: testRepo, Archive: "accent.tar.gz", Checksum: remotetest.SHA256(archive)}
	path, err := c.Download(context.Background(), m, t.TempDir())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != string(archive) {
		t.Error("downloaded content mismatch")
	}
	if err := VerifyChecksum(path, m.Checksum); err != nil {
		t.Errorf("VerifyChecksum: %v", err)
	}
}

func TestDownload_ChecksumMismatch(t *testing.T) {
	repo := remotetest.NewRepo(t)
	repo.Put("Sevii77/mods/v2/accent/accent.tar.gz", []byte("tampered"))
	c := New(WithBaseURL(repo.URL()))

	m := &mod.Mod{ID: "accent", Repo: testRepo, Checksum: strings.Repeat("0", 64)}
	dest := t.TempDir()
	_, err := c.Download(context.Background(), m, dest)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("Download err = %v, want checksum mismatch", err)
	}
	if entries, _ := os.ReadDir(dest); len(entries) != 0 {
		t.Errorf("rejected archive left behind: %v", entries)
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.tar.gz")
	os.WriteFile(path, []byte("payload"), 0644)
	sum := remotetest.SHA256([]byte("payload"))

	if err := VerifyChecksum(path, strings.ToUpper(sum)); err != nil {
		t.Errorf("VerifyChecksum with uppercase digest: %v", err)
	}
	if err := VerifyChecksum(path, strings.Repeat("0", 64)); err == nil {
		t.Error("expected mismatch")
	}
	if err := VerifyChecksum(filepath.Join(t.TempDir(), "missing"), sum); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDownload_Missing(t *testing.T) {
	repo := remotetest.NewRepo(t)
	c := New(WithBaseURL(repo.URL()))
	m := &mod.Mod{ID: "accent", Repo: testRepo}
	if _, err := c.Download(context.Background(), m, t.TempDir()); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestExtract_TarGz(t *testing.T) {
	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "pkg.tar.gz")
	os.WriteFile(archivePath, remotetest.TarGz(t, map[string]string{
		"meta.json":        `{}`,
		"ui/uld/frame.tex": "tex",
	}), 0644)

	dest := filepath.Join(tmp, "out")
	if err := Extract(archivePath, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "ui", "uld", "frame.tex"))
	if err != nil || string(data) != "tex" {
		t.Errorf("nested file = %q, %v", data, err)
	}
}

func TestExtract_Zip(t *testing.T) {
	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "pkg.zip")
	os.WriteFile(archivePath, remotetest.Zip(t, map[string]string{"a/b.txt": "zip"}), 0644)

	dest := filepath.Join(tmp, "out")
	if err := Extract(archivePath, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "a", "b.txt")); string(data) != "zip" {
		t.Errorf("content = %q", data)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	for name, data := range map[string][]byte{
		"evil.tar.gz": remotetest.TarGz(t, map[string]string{"../escaped.txt": "x"}),
		"evil.zip":    remotetest.Zip(t, map[string]string{"../escaped.txt": "x"}),
	} {
		t.Run(name, func(t *testing.T) {
			archivePath := filepath.Join(tmp, name)
			os.WriteFile(archivePath, data, 0644)

			err := Extract(archivePath, filepath.Join(tmp, "out-"+name))
			if err == nil {
				t.Fatal("expected traversal error")
			}
			if _, statErr := os.Stat(filepath.Join(tmp, "escaped.txt")); statErr == nil {
				t.Error("file escaped the destination")
			}
		})
	}
}
