package photos

import "math/rand/v2"

// Sample returns up to count entries of pool that are not in exclude, in
// random order. When exclude covers the whole pool the exclusion is dropped
// and the full pool is sampled instead, so a non-empty pool always yields
// something. An empty pool or a non-positive count yields nil.
//
// pool is expected to hold unique entries; Sample never returns more than
// min(count, len(pool)) items.
func Sample(r *rand.Rand, pool, exclude []string, count int) []string {
	if len(pool) == 0 || count <= 0 {
		return nil
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	available := make([]string, 0, len(pool))
	for _, id := range pool {
		if _, ok := skip[id]; !ok {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		available = pool
	}

	shuffled := Shuffle(r, available)
	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}
