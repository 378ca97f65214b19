// Package photos holds the photo pool, the distinct sampler and the manifest
// loader. Everything here is read-only once built; sessions share a Pool
// without copying it.
package photos

import "math/rand/v2"

// Pool is an ordered, deduplicated set of photo identifiers (file names).
// The zero value is an empty pool.
type Pool struct {
	ids []string
}

// NewPool builds a Pool from ids, dropping empty strings and later
// duplicates. First-seen order is kept.
func NewPool(ids []string) Pool {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return Pool{ids: out}
}

// Len returns the number of photos in the pool.
func (p Pool) Len() int { return len(p.ids) }

// IDs returns a copy of the pool contents in pool order.
func (p Pool) IDs() []string {
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Contains reports whether id is part of the pool.
func (p Pool) Contains(id string) bool {
	for _, v := range p.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Sample draws up to count distinct photos not in exclude. See Sample.
func (p Pool) Sample(r *rand.Rand, exclude []string, count int) []string {
	return Sample(r, p.ids, exclude, count)
}
