package mod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeResolver struct {
	mods  map[string]*Mod
	calls map[string]int
	mu    sync.Mutex
}

func (f *fakeResolver) GetModLocal(id string) (*Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	m, ok := f.mods[id]
	if !ok {
		return nil, fmt.Errorf("package %s not found", id)
	}
	return m, nil
}

type fakeProvider struct {
	ids []string
	err error
}

func (f fakeProvider) GetMods() ([]string, error) { return f.ids, f.err }

func TestAddInstalledMod_Duplicate(t *testing.T) {
	r := NewRegistry()
	if !r.AddInstalledMod(&Mod{ID: "a"}) {
		t.Fatal("first insert should succeed")
	}
	if r.AddInstalledMod(&Mod{ID: "a", Name: "other"}) {
		t.Error("second insert with the same ID should be a no-op")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	m, _ := r.Get("a")
	if m.Name != "" {
		t.Errorf("original entry was overwritten: Name = %q", m.Name)
	}
}

func TestAddInstalledMod_ExistingPair(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a"})
	r.AddInstalledMod(&Mod{ID: "b"})

	r.AddInstalledMod(&Mod{ID: "a", AutoUpdate: true})

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestAddInstalledMod_RejectsEmpty(t *testing.T) {
	r := NewRegistry()
	if r.AddInstalledMod(nil) || r.AddInstalledMod(&Mod{}) {
		t.Error("nil or ID-less mods must not be inserted")
	}
}

func TestAddInstalledMod_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AddInstalledMod(&Mod{ID: "same"})
		}()
	}
	wg.Wait()
	if r.Len() != 1 {
		t.Errorf("Len() = %d after concurrent inserts, want 1", r.Len())
	}
}

func TestDeleteInstalledMod(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a"})
	r.AddInstalledMod(&Mod{ID: "b"})
	r.AddInstalledMod(&Mod{ID: "c"})

	r.DeleteInstalledMod("b")

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "c" {
		t.Errorf("Snapshot() = %+v, want [a c]", snap)
	}
}

func TestDeleteInstalledMod_Absent(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a"})
	r.DeleteInstalledMod("missing")
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestAddLocalMod(t *testing.T) {
	res := &fakeResolver{mods: map[string]*Mod{"ok": {ID: "ok", AutoUpdate: true}}}
	r := NewRegistry()

	r.AddLocalMod(res, "ok")
	r.AddLocalMod(res, "broken")
	r.AddLocalMod(res, "ok")

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if res.calls["ok"] != 1 {
		t.Errorf("resolver called %d times for a registered mod, want 1", res.calls["ok"])
	}
	if res.calls["broken"] != 1 {
		t.Errorf("resolver called %d times for broken mod, want 1", res.calls["broken"])
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a"})

	snap := r.Snapshot()
	snap[0].Name = "mutated"

	m, _ := r.Get("a")
	if m.Name == "mutated" {
		t.Error("mutating a snapshot changed the registry")
	}
}

func TestSetAutoUpdate(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a"})

	if err := r.SetAutoUpdate("a", true); err != nil {
		t.Fatalf("SetAutoUpdate: %v", err)
	}
	if m, _ := r.Get("a"); !m.AutoUpdate {
		t.Error("AutoUpdate should be true")
	}
	if err := r.SetAutoUpdate("missing", true); err == nil {
		t.Error("expected error for unknown mod")
	}
}

func TestReplaceInstalledMod(t *testing.T) {
	r := NewRegistry()
	r.AddInstalledMod(&Mod{ID: "a", Version: "1.0.0"})
	r.AddInstalledMod(&Mod{ID: "b"})

	r.ReplaceInstalledMod(&Mod{ID: "a", Version: "1.1.0"})

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[0].Version != "1.1.0" {
		t.Errorf("Snapshot() = %+v, want a@1.1.0 first", snap)
	}
}

func TestPopulate(t *testing.T) {
	res := &fakeResolver{mods: map[string]*Mod{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	r := NewRegistry()

	err := r.Populate(context.Background(), fakeProvider{ids: []string{"a", "bad", "b"}}, res)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestPopulate_ProviderError(t *testing.T) {
	r := NewRegistry()
	err := r.Populate(context.Background(), fakeProvider{err: errors.New("boom")}, &fakeResolver{})
	if err == nil {
		t.Fatal("expected provider error")
	}
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    RepoInfo
		wantErr bool
	}{
		{"Sevii77/ffxiv_materialui_accent@v2", RepoInfo{"Sevii77", "ffxiv_materialui_accent", "v2"}, false},
		{"owner/name", RepoInfo{"owner", "name", DefaultBranch}, false},
		{"  owner/name@dev ", RepoInfo{"owner", "name", "dev"}, false},
		{"owner", RepoInfo{}, true},
		{"owner/", RepoInfo{}, true},
		{"/name", RepoInfo{}, true},
		{"a/b/c", RepoInfo{}, true},
		{"owner/name@", RepoInfo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepo(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRepo(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepoInfo_Equal(t *testing.T) {
	a := RepoInfo{"Sevii77", "Accent", "v2"}
	if !a.Equal(RepoInfo{"sevii77", "accent", "v2"}) {
		t.Error("owner/name comparison should ignore case")
	}
	if a.Equal(RepoInfo{"Sevii77", "Accent", "v3"}) {
		t.Error("different branches must not be equal")
	}
}
