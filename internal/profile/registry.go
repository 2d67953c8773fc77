package profile

import (
	"fmt"
	"sync"

	"macropad/internal/macro"
)

// AutoLabel is the browse label of the synthetic auto-switch entry.
const AutoLabel = "Auto Switch Apps"

// BrowseEntry is one row of the Switch-mode browse list.
type BrowseEntry struct {
	Auto bool
	Key  Key
}

// Registry is the catalog of known profiles plus the browse order.
// It is filled at start-up and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	profiles map[Key]*Profile
	order    []Key
}

// NewRegistry creates a registry holding only the built-in idle profile.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[Key]*Profile)}
	r.profiles[IdleKey] = Idle()
	return r
}

// Register adds p, replacing any profile with the same key. A replaced profile keeps
// its browse position.
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.Key]; !exists && p.Key != IdleKey {
		r.order = append(r.order, p.Key)
	}
	r.profiles[p.Key] = p
}

// Resolve returns the profile registered under k.
func (r *Registry) Resolve(k Key) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[k]
	return p, ok
}

// DefaultKeyFor returns the fallback key for k's platform.
func (r *Registry) DefaultKeyFor(k Key) Key {
	return k.Default()
}

// MacroSlot returns slot i of p. An absent slot comes from the platform default
// profile; if that is also absent the slot is blank.
func (r *Registry) MacroSlot(p *Profile, i int) macro.Action {
	if p == nil || i < 0 || i >= macro.NumKeys {
		return macro.Blank
	}
	if a := p.Macros[i]; a != nil {
		return *a
	}
	def, ok := r.Resolve(p.Key.Default())
	if !ok || def.Macros[i] == nil {
		return macro.Blank
	}
	return *def.Macros[i]
}

// Len returns the number of registered profiles, excluding the idle profile.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Profiles returns the registered profiles in browse order.
func (r *Registry) Profiles() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.profiles[k])
	}
	return out
}

// Browse returns the browse list: the auto entry followed by every profile in
// registration order.
func (r *Registry) Browse() []BrowseEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BrowseEntry, 0, len(r.order)+1)
	out = append(out, BrowseEntry{Auto: true})
	for _, k := range r.order {
		out = append(out, BrowseEntry{Key: k})
	}
	return out
}

// BrowseIndex returns the browse position of k, or 0 (auto) when k is not listed.
func (r *Registry) BrowseIndex(k Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, key := range r.order {
		if key == k {
			return i + 1
		}
	}
	return 0
}

// BrowseLabel is the display text for a browse entry.
func (r *Registry) BrowseLabel(e BrowseEntry) string {
	if e.Auto {
		return AutoLabel
	}
	if p, ok := r.Resolve(e.Key); ok {
		return fmt.Sprintf("%s (%s)", p.Name, p.Key.Platform)
	}
	return e.Key.String()
}
