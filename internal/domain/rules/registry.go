package rules

import "sync/atomic"

// Registry holds the active rule table. Calculation runs take one snapshot
// with Current and keep using it; Swap replaces the table for later runs.
type Registry struct {
	current atomic.Pointer[Table]
	swaps   atomic.Int64
}

// NewRegistry returns a registry serving t.
func NewRegistry(t *Table) *Registry {
	r := &Registry{}
	r.current.Store(t)
	return r
}

// Current returns the active table.
func (r *Registry) Current() *Table { return r.current.Load() }

// Swap installs t and returns the table it replaced.
func (r *Registry) Swap(t *Table) *Table {
	if t == nil {
		return r.current.Load()
	}
	r.swaps.Add(1)
	return r.current.Swap(t)
}

// Swaps returns how many times the table has been replaced.
func (r *Registry) Swaps() int64 { return r.swaps.Load() }
