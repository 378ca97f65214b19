package valentine

import "sync"

// Event is one server-sent render trigger.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

// SSE event names.
const (
	EventOutcome     = "outcome"
	EventShake       = "shake"
	EventShakeEnd    = "shake_end"
	EventUnlocked    = "unlocked"
	EventSlotChanged = "slot_changed"
)

// hub fans session events out to stream subscribers. Publish never blocks:
// a subscriber that is not keeping up loses events.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

func (h *hub) subscribe(buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
