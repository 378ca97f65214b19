// Package loop provides the single-threaded event loop a session runs on.
//
// Every mutation of session state is a task executed by Loop.Run, one at a
// time, so a reaction (read state, compute, write) is never interleaved with
// another. Timers do not call their callbacks directly: they post them to
// the loop, which keeps periodic work under the same rule.
//
//	l := loop.New(logger, 64)
//	go l.Run(ctx)
//	tick := l.Every(2800*time.Millisecond, func() { rotator.Tick(left) })
//	defer tick.Stop()
//	err := l.Do(ctx, func() { cal.ChangeMonth(1) })
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Do when the loop has exited.
var ErrStopped = errors.New("loop: stopped")

// Loop serialises tasks on one goroutine.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// New creates a loop with a task queue of the given depth. Call Run to start
// it.
func New(logger *slog.Logger, queue int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if queue <= 0 {
		queue = 64
	}
	return &Loop{
		tasks:  make(chan func(), queue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run executes tasks until ctx is cancelled. Tasks still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop: task panicked", "panic", r)
		}
	}()
	fn()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues fn without waiting for it to run. It returns false if the
// loop has already exited.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Timer is a cancellable handle on a periodic or one-shot callback.
type Timer struct {
	l  *Loop
	fn func()

	mu      sync.Mutex
	gen     uint64
	stopped bool
	oneShot *time.Timer
	quit    chan struct{}
}

// Every runs fn on the loop every period until the returned Timer is
// stopped or the loop exits. Ticks that arrive while the loop is busy are
// coalesced by the underlying time.Ticker.
func (l *Loop) Every(period time.Duration, fn func()) *Timer {
	t := &Timer{l: l, fn: fn, quit: make(chan struct{})}
	gen := t.gen
	go func() {
		tk := time.NewTicker(period)
		defer tk.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-tk.C:
				l.Post(func() {
					if t.live(gen) {
						t.fn()
					}
				})
			}
		}
	}()
	return t
}

// After runs fn on the loop once, after d. Reset re-arms it.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{l: l, fn: fn}
	t.Reset(d)
	return t
}

// Reset re-arms a one-shot timer to fire d from now. A pending firing from
// an earlier arm is discarded, so resetting never produces two callbacks.
// Reset has no effect on timers created by Every.
func (t *Timer) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.quit != nil {
		return
	}
	t.gen++
	t.stopped = false
	if t.oneShot != nil {
		t.oneShot.Stop()
	}
	gen := t.gen
	t.oneShot = time.AfterFunc(d, func() {
		t.l.Post(func() {
			if t.claim(gen) {
				t.fn()
			}
		})
	})
}

// Stop cancels the timer. Callbacks already queued on the loop are dropped.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.gen++
	if t.oneShot != nil {
		t.oneShot.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
}

// Active reports whether the timer can still fire.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

func (t *Timer) live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && t.gen == gen
}

// claim consumes a one-shot firing.
func (t *Timer) claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.gen != gen {
		return false
	}
	t.stopped = true
	return true
}
