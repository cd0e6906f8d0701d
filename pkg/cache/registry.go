package cache

import (
	"sort"
	"sync"
)

// Inspector is the type-erased view of a cache used by the admin surface.
type Inspector interface {
	Name() string
	Stats() Stats
	Clear()
}

// RegistryStats combines the stats of every registered cache.
type RegistryStats struct {
	Size   int      `json:"size"`
	Keys   []string `json:"keys"`
	Caches []Stats  `json:"caches"`
}

// Registry groups the process's caches so they can be inspected and cleared together.
type Registry struct {
	mu     sync.RWMutex
	caches []Inspector
}

func NewRegistry(caches ...Inspector) *Registry {
	r := &Registry{}
	for _, c := range caches {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Inspector) {
	r.mu.Lock()
	r.caches = append(r.caches, c)
	r.mu.Unlock()
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	caches := append([]Inspector(nil), r.caches...)
	r.mu.RUnlock()

	out := RegistryStats{Keys: []string{}, Caches: make([]Stats, 0, len(caches))}
	for _, c := range caches {
		s := c.Stats()
		out.Size += s.Size
		out.Keys = append(out.Keys, s.Keys...)
		out.Caches = append(out.Caches, s)
	}
	sort.Strings(out.Keys)
	return out
}

func (r *Registry) Clear() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.caches {
		c.Clear()
	}
}
