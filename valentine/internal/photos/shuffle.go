// CLAUDE:SUMMARY Generic copy-then-shuffle helper backed by math/rand/v2.
package photos

import "math/rand/v2"

// Shuffle returns a uniformly shuffled copy of seq. seq itself is never
// touched. A nil r falls back to the global math/rand/v2 source.
func Shuffle[T any](r *rand.Rand, seq []T) []T {
	out := make([]T, len(seq))
	copy(out, seq)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if r == nil {
		rand.Shuffle(len(out), swap)
	} else {
		r.Shuffle(len(out), swap)
	}
	return out
}
