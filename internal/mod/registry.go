package mod

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps mod IDs to installed mods. Iteration follows insertion order.
type Registry struct {
	mu   sync.RWMutex
	mods []*Mod
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddInstalledMod inserts m unless a mod with the same ID is already present.
// It reports whether the mod was inserted.
func (r *Registry) AddInstalledMod(m *Mod) bool {
	if m == nil || m.ID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(m.ID) >= 0 {
		return false
	}
	cp := *m
	r.mods = append(r.mods, &cp)
	return true
}

// ReplaceInstalledMod inserts m, replacing an existing entry with the same ID
// in place.
func (r *Registry) ReplaceInstalledMod(m *Mod) {
	if m == nil || m.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	if i := r.indexLocked(m.ID); i >= 0 {
		r.mods[i] = &cp
		return
	}
	r.mods = append(r.mods, &cp)
}

// AddLocalMod resolves id through resolver and inserts the result.
// Resolution failures are logged and swallowed; the mod is simply not added.
func (r *Registry) AddLocalMod(resolver LocalResolver, id string) {
	if r.Has(id) {
		return
	}

	m, err := resolver.GetModLocal(id)
	if err != nil {
		log.Error().Err(err).Str("mod", id).Msg("Failed adding local mod")
		return
	}
	if m == nil {
		return
	}
	r.AddInstalledMod(m)
}

// DeleteInstalledMod removes every entry with the given ID. Unknown IDs are a no-op.
func (r *Registry) DeleteInstalledMod(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.mods[:0]
	for _, m := range r.mods {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(r.mods); i++ {
		r.mods[i] = nil
	}
	r.mods = kept
}

// SetAutoUpdate toggles the auto-update flag of an installed mod.
func (r *Registry) SetAutoUpdate(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("mod %q is not installed", id)
	}
	cp := *r.mods[i]
	cp.AutoUpdate = enabled
	r.mods[i] = &cp
	return nil
}

// Get returns a copy of the mod with the given ID.
func (r *Registry) Get(id string) (Mod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return *r.mods[i], true
	}
	return Mod{}, false
}

// Has reports whether a mod with the given ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(id) >= 0
}

// Len returns the number of registered mods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}

// Snapshot returns copies of all registered mods in insertion order.
// Callers may render or iterate it while the registry keeps changing.
func (r *Registry) Snapshot() []Mod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Mod, len(r.mods))
	for i, m := range r.mods {
		out[i] = *m
	}
	return out
}

// Populate adds every package reported by provider via AddLocalMod.
func (r *Registry) Populate(ctx context.Context, provider InstalledProvider, resolver LocalResolver) error {
	ids, err := provider.GetMods()
	if err != nil {
		return fmt.Errorf("listing installed mods: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.AddLocalMod(resolver, id)
	}
	log.Debug().Int("reported", len(ids)).Int("registered", r.Len()).Msg("Populated mod registry")
	return nil
}

func (r *Registry) indexLocked(id string) int {
	for i, m := range r.mods {
		if m.ID == id {
			return i
		}
	}
	return -1
}
