// Package remotetest serves fake mod repositories for tests.
package remotetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// TarGz builds a tar.gz archive holding files (name -> content).
func TarGz(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for _, name := range sortedKeys(files) {
		content := files[name]
		hdr := &tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Zip builds a zip archive holding files (name -> content).
func Zip(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedKeys(files) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// SHA256 returns the hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Repo is an in-memory repository served over HTTP with the same layout as
// raw.githubusercontent.com: /<owner>/<name>/<branch>/<id>/<file>.
type Repo struct {
	Server *httptest.Server

	mu     sync.Mutex
	files  map[string][]byte
	status map[string]int
	hits   map[string]int
}

// NewRepo starts a fake repository server, closed when the test ends.
func NewRepo(t testing.TB) *Repo {
	t.Helper()
	r := &Repo{
		files:  make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Server.Close)
	return r
}

// URL returns the base URL to configure clients with.
func (r *Repo) URL() string {
	return r.Server.URL
}

// Put serves content at path (e.g. "owner/name/main/id/meta.json").
func (r *Repo) Put(path string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files["/"+strings.TrimPrefix(path, "/")] = content
}

// Fail makes path answer with the given status code.
func (r *Repo) Fail(path string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status["/"+strings.TrimPrefix(path, "/")] = status
}

// Hits returns how many requests path received.
func (r *Repo) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits["/"+strings.TrimPrefix(path, "/")]
}

func (r *Repo) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.hits[req.URL.Path]++
	status, failed := r.status[req.URL.Path]
	body, ok := r.files[req.URL.Path]
	r.mu.Unlock()

	switch {
	case failed:
		w.WriteHeader(status)
	case !ok:
		http.NotFound(w, req)
	default:
		w.Write(body)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
