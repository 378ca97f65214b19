// Package gate is the one-way latch between a correct date and the reveal.
package gate

// Gate starts locked and can be unlocked once. Observers registered with
// Subscribe run exactly once, in registration order, on the call to Unlock
// that flips the latch. Observers added after that never run.
//
// Gate is not safe for concurrent use; it belongs to a session loop.
type Gate struct {
	unlocked  bool
	observers []func()
}

// New returns a locked gate.
func New() *Gate { return &Gate{} }

// Subscribe registers fn to run on unlock.
func (g *Gate) Subscribe(fn func()) {
	if fn == nil || g.unlocked {
		return
	}
	g.observers = append(g.observers, fn)
}

// Unlock opens the gate. It returns true only for the call that changed the
// state; later calls are no-ops.
func (g *Gate) Unlock() bool {
	if g.unlocked {
		return false
	}
	g.unlocked = true
	observers := g.observers
	g.observers = nil
	for _, fn := range observers {
		fn()
	}
	return true
}

// Unlocked reports the latch state.
func (g *Gate) Unlocked() bool { return g.unlocked }
