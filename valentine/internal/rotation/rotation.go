// Package rotation keeps a fixed strip of photo slots fresh by swapping one
// slot at a time, preferring photos the strip is not already showing.
package rotation

import (
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/valentine/valentine/internal/loop"
	"github.com/hazyhaar/valentine/valentine/internal/photos"
)

// Surface is one display strip. Shown holds the photo currently occupying
// each slot; its length never changes after initialisation.
type Surface struct {
	id    string
	shown []string
}

// ID returns the surface identifier ("left", "right", ...).
func (s *Surface) ID() string { return s.id }

// Shown returns a copy of the slot contents.
func (s *Surface) Shown() []string {
	out := make([]string, len(s.shown))
	copy(out, s.shown)
	return out
}

// Len returns the slot count.
func (s *Surface) Len() int { return len(s.shown) }

// SlotChange describes one tick's swap.
type SlotChange struct {
	Surface string `json:"surface"`
	Slot    int    `json:"slot"`
	Photo   string `json:"photo"`
}

// Rotator owns the pool and random source shared by a session's surfaces.
// Like the rest of a session it must only be used from the session loop.
type Rotator struct {
	pool     photos.Pool
	rng      *rand.Rand
	onChange func(SlotChange)
}

// New creates a Rotator over pool. onChange, if set, is called after every
// successful swap. A nil rng uses the global source.
func New(pool photos.Pool, rng *rand.Rand, onChange func(SlotChange)) *Rotator {
	return &Rotator{pool: pool, rng: rng, onChange: onChange}
}

// NewSurface fills a surface with up to slots distinct photos, avoiding
// exclude where the pool allows it.
func (r *Rotator) NewSurface(id string, slots int, exclude []string) *Surface {
	return &Surface{id: id, shown: r.pool.Sample(r.rng, exclude, slots)}
}

// InitSurfaces builds co-visible surfaces in order. Each one avoids the
// photos already placed on the previous ones; when that leaves it short of
// slots it is filled from the whole pool instead.
func (r *Rotator) InitSurfaces(ids []string, slots int) []*Surface {
	var placed []string
	out := make([]*Surface, 0, len(ids))
	for _, id := range ids {
		s := r.NewSurface(id, slots, placed)
		if len(placed) > 0 && s.Len() < slots {
			s = r.NewSurface(id, slots, nil)
		}
		placed = append(placed, s.shown...)
		out = append(out, s)
	}
	return out
}

// Tick swaps the photo in one random slot of s. The replacement comes from
// the photos s is not showing; when s already shows the whole pool it is any
// other photo than the slot's current one. Pools of 0 or 1 photos and empty
// surfaces leave s untouched and return false.
func (r *Rotator) Tick(s *Surface) (SlotChange, bool) {
	if r.pool.Len() <= 1 || len(s.shown) == 0 {
		return SlotChange{}, false
	}

	slot := r.intN(len(s.shown))
	old := s.shown[slot]

	next := r.pool.Sample(r.rng, s.shown, 1)
	if len(next) == 1 && next[0] == old {
		next = r.pool.Sample(r.rng, []string{old}, 1)
	}
	if len(next) == 0 {
		return SlotChange{}, false
	}

	s.shown[slot] = next[0]
	change := SlotChange{Surface: s.id, Slot: slot, Photo: next[0]}
	if r.onChange != nil {
		r.onChange(change)
	}
	return change, true
}

// Start ticks s on l every period until the returned timer is stopped.
func (r *Rotator) Start(l *loop.Loop, s *Surface, period time.Duration) *loop.Timer {
	return l.Every(period, func() { r.Tick(s) })
}

func (r *Rotator) intN(n int) int {
	if r.rng == nil {
		return rand.IntN(n)
	}
	return r.rng.IntN(n)
}
