// CLAUDE:SUMMARY One page load: calendar, gate, strips, refusal button and SSE hub, all driven from a single event loop.
package valentine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/valentine/observability"
	"github.com/hazyhaar/valentine/valentine/internal/calendar"
	"github.com/hazyhaar/valentine/valentine/internal/gate"
	"github.com/hazyhaar/valentine/valentine/internal/loop"
	"github.com/hazyhaar/valentine/valentine/internal/photos"
	"github.com/hazyhaar/valentine/valentine/internal/reveal"
	"github.com/hazyhaar/valentine/valentine/internal/rotation"
)

// EventKind names a browser event.
type EventKind string

const (
	KindMonthPrev     EventKind = "month_prev"
	KindMonthNext     EventKind = "month_next"
	KindYearChanged   EventKind = "year_changed"
	KindDayClicked    EventKind = "day_clicked"
	KindSubmit        EventKind = "submit"
	KindSurfaceOpened EventKind = "surface_opened"
	KindSurfaceClosed EventKind = "surface_closed"
	KindYesClicked    EventKind = "yes_clicked"
	KindNoClicked     EventKind = "no_clicked"
)

// Input is one event posted by the page. Value carries the year for
// year_changed and the day for day_clicked.
type Input struct {
	Kind  EventKind `json:"kind"`
	Value *int      `json:"value,omitempty"`
}

// View is everything the page needs to repaint after an event.
type View struct {
	Session     string               `json:"session"`
	Grid        calendar.Grid        `json:"grid"`
	Years       []int                `json:"years"`
	Outcome     calendar.Outcome     `json:"outcome,omitempty"`
	Message     string               `json:"message"`
	Shaking     bool                 `json:"shaking"`
	ModalOpen   bool                 `json:"modal_open"`
	Celebrating bool                 `json:"celebrating"`
	Unlocked    bool                 `json:"unlocked"`
	No          reveal.NoButtonState `json:"no"`
	Collage     []string             `json:"collage,omitempty"`
}

// StripView is the current content of one rotating strip.
type StripView struct {
	ID     string   `json:"id"`
	Photos []string `json:"photos"`
}

// RevealView is the content behind the gate.
type RevealView struct {
	Strips   []StripView        `json:"strips"`
	Heart    []reveal.Placement `json:"heart"`
	Rewards  []string           `json:"rewards"`
	Elapsed  reveal.Elapsed     `json:"elapsed"`
	Timer    string             `json:"timer"`
	Phrase   string             `json:"phrase"`
	Phrases  []string           `json:"phrases"`
	KidsLink string             `json:"kids_link"`
}

// Session is the server-side state of one page load. All fields below the
// loop are owned by the loop goroutine and only touched from tasks.
type Session struct {
	id        string
	cfg       *Config
	loveStart time.Time
	pools     photos.Pools
	rng       *rand.Rand
	now       func() time.Time
	events    *observability.EventLogger
	logger    *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	loop      *loop.Loop
	hub       *hub
	created   time.Time
	lastSeen  atomic.Int64
	closeOnce sync.Once

	cal         *calendar.Calendar
	gate        *gate.Gate
	no          *reveal.NoButton
	rotator     *rotation.Rotator
	surfaces    []*rotation.Surface
	strips      []*loop.Timer
	shake       *loop.Timer
	shaking     bool
	outcome     calendar.Outcome
	message     string
	modalOpen   bool
	celebrating bool
	collage     []string
	heart       []reveal.Placement
	rewards     []string
	unlockedAt  time.Time
	attempts    int
}

type sessionDeps struct {
	cfg       *Config
	loveStart time.Time
	pools     photos.Pools
	rng       *rand.Rand
	now       func() time.Time
	events    *observability.EventLogger
	logger    *slog.Logger
}

// newSession builds a session and starts its loop under parent.
func newSession(parent context.Context, id string, d sessionDeps) *Session {
	now := d.now()
	s := &Session{
		id:        id,
		cfg:       d.cfg,
		loveStart: d.loveStart,
		pools:     d.pools,
		rng:       d.rng,
		now:       d.now,
		events:    d.events,
		logger:    d.logger.With("session", id),
		loop:      loop.New(d.logger, 64),
		hub:       newHub(),
		created:   now,
		cal:       calendar.New(now),
		gate:      gate.New(),
		no:        reveal.NewNoButton(d.cfg.Messages.No, d.cfg.Messages.NoExhausted, d.cfg.NoClicksMax),
		collage:   reveal.CollageTrack(d.rng, d.pools.Couples),
	}
	s.lastSeen.Store(now.UnixNano())

	s.gate.Subscribe(s.hideSurfaces)
	s.gate.Subscribe(s.startStrips)
	s.gate.Subscribe(func() { s.hub.publish(Event{Name: EventUnlocked, Data: s.revealView()}) })
	s.gate.Subscribe(func() {
		s.logger.Info("valentine: gate unlocked", "attempts", s.attempts)
		s.logEvent(observability.EventUnlocked, "unlock", true, map[string]any{"attempts": s.attempts})
	})

	s.ctx, s.cancel = context.WithCancel(parent)
	go s.loop.Run(s.ctx)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.loop.Done() }

// LastSeen is the time of the last API call on the session.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) touch() { s.lastSeen.Store(s.now().UnixNano()) }

// dispatch maps each event kind to its reaction. Reactions run on the loop.
var dispatch = map[EventKind]func(*Session, Input) error{
	KindMonthPrev:     func(s *Session, _ Input) error { s.cal.ChangeMonth(-1); return nil },
	KindMonthNext:     func(s *Session, _ Input) error { s.cal.ChangeMonth(1); return nil },
	KindYearChanged:   (*Session).setYear,
	KindDayClicked:    (*Session).selectDay,
	KindSubmit:        (*Session).submit,
	KindSurfaceOpened: (*Session).openSurface,
	KindSurfaceClosed: (*Session).closeSurface,
	KindYesClicked:    (*Session).accept,
	KindNoClicked:     (*Session).refuse,
}

// Apply runs one browser event and returns the resulting view.
func (s *Session) Apply(ctx context.Context, in Input) (View, error) {
	react, ok := dispatch[in.Kind]
	if !ok {
		return View{}, fmt.Errorf("%w: unknown event kind %q", ErrInvalidInput, in.Kind)
	}
	s.touch()

	var (
		view     View
		reactErr error
	)
	err := s.loop.Do(ctx, func() {
		if reactErr = react(s, in); reactErr == nil {
			view = s.view()
		}
	})
	if err != nil {
		return View{}, s.loopErr(err)
	}
	return view, reactErr
}

// Snapshot returns the current view, including the couples collage.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	s.touch()
	var view View
	if err := s.loop.Do(ctx, func() {
		view = s.view()
		view.Collage = s.collage
	}); err != nil {
		return View{}, s.loopErr(err)
	}
	return view, nil
}

// Grid returns the calendar grid for the current cursor.
func (s *Session) Grid(ctx context.Context) (calendar.Grid, error) {
	s.touch()
	var g calendar.Grid
	if err := s.loop.Do(ctx, func() { g = s.cal.Render() }); err != nil {
		return calendar.Grid{}, s.loopErr(err)
	}
	return g, nil
}

// Reveal returns the gated content, or ErrLocked.
func (s *Session) Reveal(ctx context.Context) (RevealView, error) {
	s.touch()
	var (
		rv     RevealView
		locked bool
	)
	err := s.loop.Do(ctx, func() {
		if !s.gate.Unlocked() {
			locked = true
			return
		}
		rv = s.revealView()
	})
	if err != nil {
		return RevealView{}, s.loopErr(err)
	}
	if locked {
		return RevealView{}, ErrLocked
	}
	return rv, nil
}

// Subscribe returns a stream of render triggers and its cancel func.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.touch()
	return s.hub.subscribe(32)
}

// Close stops the loop and every timer. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.loop.Done()
		for _, t := range s.strips {
			t.Stop()
		}
		if s.shake != nil {
			s.shake.Stop()
		}
		s.logEvent(observability.EventSessionClosed, "close", true, map[string]any{
			"attempts": s.attempts,
			"unlocked": s.gate.Unlocked(),
		})
	})
}

func (s *Session) loopErr(err error) error {
	if errors.Is(err, loop.ErrStopped) {
		return ErrSessionClosed
	}
	return err
}

// --- reactions (loop only) ---

func (s *Session) setYear(in Input) error {
	if in.Value == nil {
		return fmt.Errorf("%w: year_changed needs a value", ErrInvalidInput)
	}
	if !s.cfg.Years.Contains(*in.Value) {
		return fmt.Errorf("%w: year %d outside %d..%d", ErrInvalidInput, *in.Value, s.cfg.Years.Min, s.cfg.Years.Max)
	}
	s.cal.SetYear(*in.Value)
	return nil
}

func (s *Session) selectDay(in Input) error {
	if in.Value == nil {
		return fmt.Errorf("%w: day_clicked needs a value", ErrInvalidInput)
	}
	s.cal.SelectDay(*in.Value)
	return nil
}

func (s *Session) submit(Input) error {
	cur := s.cal.Cursor()
	o := s.cal.Submit(s.cfg.Target)
	s.attempts++
	s.outcome = o
	s.message = o.Message()

	s.logEvent(observability.EventAttempt, string(o), o == calendar.Match, map[string]any{
		"year":    cur.Year,
		"month":   cur.Month,
		"day":     cur.Day,
		"attempt": s.attempts,
	})
	s.hub.publish(Event{Name: EventOutcome, Data: map[string]any{"outcome": o, "message": s.message}})

	if o.Failed() {
		s.startShake()
		return nil
	}
	s.gate.Unlock()
	return nil
}

// startShake shakes the card for ShakeDuration. A shake already running is
// extended rather than stacked.
func (s *Session) startShake() {
	s.shaking = true
	s.hub.publish(Event{Name: EventShake})
	if s.shake == nil {
		s.shake = s.loop.After(s.cfg.ShakeDuration, s.endShake)
		return
	}
	s.shake.Reset(s.cfg.ShakeDuration)
}

func (s *Session) endShake() {
	s.shaking = false
	s.hub.publish(Event{Name: EventShakeEnd})
}

func (s *Session) openSurface(Input) error {
	if s.gate.Unlocked() {
		return nil
	}
	s.celebrating = false
	s.modalOpen = true
	s.clearPicker()
	return nil
}

func (s *Session) closeSurface(Input) error {
	s.modalOpen = false
	s.clearPicker()
	return nil
}

func (s *Session) clearPicker() {
	s.cal.Reset(s.now())
	s.outcome = ""
	s.message = ""
}

func (s *Session) accept(Input) error {
	if !s.celebrating {
		s.logEvent(observability.EventAnswer, "yes", true, map[string]any{"no_clicks": s.no.State().Clicks})
	}
	s.celebrating = true
	return nil
}

func (s *Session) refuse(Input) error {
	st := s.no.Click()
	s.logEvent(observability.EventAnswer, "no", false, map[string]any{"clicks": st.Clicks})
	return nil
}

// --- gate observers (loop only) ---

func (s *Session) hideSurfaces() {
	s.modalOpen = false
	s.celebrating = false
	s.unlockedAt = s.now()
	s.heart = reveal.HeartLayout(s.rng, s.pools.Kids)
	s.rewards = reveal.RewardPicks(s.rng, s.pools.Kids, s.cfg.RewardBoxes)
}

func (s *Session) startStrips() {
	s.rotator = rotation.New(s.pools.Kids, s.rng, func(c rotation.SlotChange) {
		s.hub.publish(Event{Name: EventSlotChanged, Data: c})
	})
	s.surfaces = s.rotator.InitSurfaces(s.cfg.stripIDs(), s.cfg.SlotsPerStrip)
	// Nothing to swap in.
	if s.pools.Kids.Len() <= 1 {
		return
	}
	for i, sf := range s.surfaces {
		s.strips = append(s.strips, s.rotator.Start(s.loop, sf, s.cfg.Strips[i].Period))
	}
}

func (s *Session) view() View {
	return View{
		Session:     s.id,
		Grid:        s.cal.Render(),
		Years:       s.cfg.Years.Years(),
		Outcome:     s.outcome,
		Message:     s.message,
		Shaking:     s.shaking,
		ModalOpen:   s.modalOpen,
		Celebrating: s.celebrating,
		Unlocked:    s.gate.Unlocked(),
		No:          s.no.State(),
	}
}

func (s *Session) revealView() RevealView {
	now := s.now()
	elapsed := reveal.Since(s.loveStart, now)

	strips := make([]StripView, len(s.surfaces))
	for i, sf := range s.surfaces {
		strips[i] = StripView{ID: sf.ID(), Photos: sf.Shown()}
	}
	return RevealView{
		Strips:   strips,
		Heart:    s.heart,
		Rewards:  s.rewards,
		Elapsed:  elapsed,
		Timer:    elapsed.String(),
		Phrase:   reveal.Phrase(s.cfg.Phrases, int(now.Sub(s.unlockedAt)/s.cfg.PhraseEvery)),
		Phrases:  s.cfg.Phrases,
		KidsLink: "/kids",
	}
}

func (s *Session) logEvent(kind, action string, success bool, details map[string]any) {
	s.events.LogEvent(context.WithoutCancel(s.ctx), observability.BusinessEvent{
		EventType:   kind,
		ServiceName: "valentine",
		SessionID:   s.id,
		Action:      action,
		Details:     details,
		Success:     success,
	})
}
