package rotation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/valentine/valentine/internal/loop"
	"github.com/hazyhaar/valentine/valentine/internal/photos"
)

func testRand() *rand.Rand { return rand.New(rand.NewPCG(3, 5)) }

func poolOf(n int) photos.Pool {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("kid%02d.jpg", i)
	}
	return photos.NewPool(ids)
}

func diffCount(a, b []string) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func TestInitSurfaces_Disjoint(t *testing.T) {
	r := New(poolOf(10), testRand(), nil)
	surfaces := r.InitSurfaces([]string{"left", "right"}, 4)

	left, right := surfaces[0].Shown(), surfaces[1].Shown()
	if len(left) != 4 || len(right) != 4 {
		t.Fatalf("slot counts: %d, %d", len(left), len(right))
	}
	for _, id := range right {
		if slices.Contains(left, id) {
			t.Fatalf("right repeats left photo %s: %v / %v", id, left, right)
		}
	}
}

func TestInitSurfaces_FallbackWhenStarved(t *testing.T) {
	r := New(poolOf(6), testRand(), nil)
	surfaces := r.InitSurfaces([]string{"left", "right"}, 4)
	if surfaces[1].Len() != 4 {
		t.Fatalf("right should fall back to a full strip, got %v", surfaces[1].Shown())
	}
}

func TestInitSurfaces_SmallPool(t *testing.T) {
	r := New(poolOf(2), testRand(), nil)
	surfaces := r.InitSurfaces([]string{"left", "right"}, 4)
	for _, s := range surfaces {
		if s.Len() != 2 {
			t.Fatalf("%s: expected 2 slots from a 2-photo pool, got %v", s.ID(), s.Shown())
		}
	}
}

func TestTick_ChangesExactlyOneSlot(t *testing.T) {
	for _, size := range []int{2, 3, 4, 5, 12} {
		r := New(poolOf(size), testRand(), nil)
		s := r.NewSurface("left", 4, nil)
		for range 200 {
			before := s.Shown()
			change, ok := r.Tick(s)
			if !ok {
				t.Fatalf("pool %d: tick reported no change", size)
			}
			after := s.Shown()
			if d := diffCount(before, after); d != 1 {
				t.Fatalf("pool %d: %d slots changed (%v -> %v)", size, d, before, after)
			}
			if after[change.Slot] != change.Photo {
				t.Fatalf("pool %d: change %+v does not match slots %v", size, change, after)
			}
		}
	}
}

func TestTick_PrefersUnshownPhotos(t *testing.T) {
	r := New(poolOf(8), testRand(), nil)
	s := r.NewSurface("left", 4, nil)
	for range 200 {
		before := s.Shown()
		change, _ := r.Tick(s)
		if slices.Contains(before, change.Photo) {
			t.Fatalf("picked already shown photo %s from %v", change.Photo, before)
		}
		after := s.Shown()
		sorted := slices.Clone(after)
		slices.Sort(sorted)
		if len(slices.Compact(sorted)) != len(after) {
			t.Fatalf("duplicate photos on strip: %v", after)
		}
	}
}

func TestTick_StaysInPool(t *testing.T) {
	pool := poolOf(5)
	r := New(pool, testRand(), nil)
	s := r.NewSurface("left", 4, nil)
	for range 100 {
		r.Tick(s)
		for _, id := range s.Shown() {
			if !pool.Contains(id) {
				t.Fatalf("slot holds %s outside the pool", id)
			}
		}
	}
}

func TestTick_NoopOnTinyPool(t *testing.T) {
	for _, size := range []int{0, 1} {
		calls := 0
		r := New(poolOf(size), testRand(), func(SlotChange) { calls++ })
		s := r.NewSurface("left", 4, nil)
		before := s.Shown()
		if _, ok := r.Tick(s); ok {
			t.Fatalf("pool %d: tick reported a change", size)
		}
		if !slices.Equal(before, s.Shown()) || calls != 0 {
			t.Fatalf("pool %d: surface changed", size)
		}
	}
}

func TestTick_NotifiesObserver(t *testing.T) {
	var got []SlotChange
	r := New(poolOf(6), testRand(), func(c SlotChange) { got = append(got, c) })
	s := r.NewSurface("right", 4, nil)
	r.Tick(s)
	r.Tick(s)
	if len(got) != 2 || got[0].Surface != "right" {
		t.Fatalf("notifications: %+v", got)
	}
}

func TestStart_TicksOnLoopUntilStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := loop.New(nil, 16)
	go l.Run(ctx)

	var ticks atomic.Int64
	r := New(poolOf(6), testRand(), func(SlotChange) { ticks.Add(1) })
	var s *Surface
	l.Do(ctx, func() { s = r.NewSurface("left", 4, nil) })

	timer := r.Start(l, s, 5*time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("rotation never ticked")
		}
		time.Sleep(2 * time.Millisecond)
	}
	l.Do(ctx, timer.Stop)

	n := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != n {
		t.Fatal("rotation kept ticking after Stop")
	}
}
