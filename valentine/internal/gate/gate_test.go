package gate

import (
	"slices"
	"testing"
)

func TestUnlock_NotifiesOnceInOrder(t *testing.T) {
	g := New()
	var calls []string
	g.Subscribe(func() { calls = append(calls, "modal") })
	g.Subscribe(func() { calls = append(calls, "strips") })
	g.Subscribe(func() { calls = append(calls, "stream") })

	if g.Unlocked() {
		t.Fatal("gate must start locked")
	}
	if !g.Unlock() {
		t.Fatal("first unlock should report the transition")
	}
	if g.Unlock() {
		t.Fatal("second unlock should be a no-op")
	}

	if !slices.Equal(calls, []string{"modal", "strips", "stream"}) {
		t.Fatalf("observer calls: %v", calls)
	}
	if !g.Unlocked() {
		t.Fatal("gate relocked")
	}
}

func TestSubscribe_AfterUnlockIgnored(t *testing.T) {
	g := New()
	g.Unlock()
	called := false
	g.Subscribe(func() { called = true })
	g.Unlock()
	if called {
		t.Fatal("late observer ran")
	}
}

func TestUnlock_ReentrantObserver(t *testing.T) {
	g := New()
	n := 0
	g.Subscribe(func() {
		n++
		g.Unlock()
	})
	g.Unlock()
	if n != 1 {
		t.Fatalf("observer ran %d times", n)
	}
}
