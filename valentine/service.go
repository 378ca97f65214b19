// CLAUDE:SUMMARY Service orchestrator: session registry with TTL expiry, current photo pools, manifest hot reload, event log.
package valentine

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/valentine/horosafe"
	"github.com/hazyhaar/valentine/idgen"
	"github.com/hazyhaar/valentine/observability"
	"github.com/hazyhaar/valentine/shield"
	"github.com/hazyhaar/valentine/valentine/internal/photos"
	"github.com/hazyhaar/valentine/watch"
)

// Service owns every live session and the photo pools new sessions start
// from.
type Service struct {
	cfg       *Config
	loveStart time.Time
	subtitle  template.HTML
	logger    *slog.Logger
	events    *observability.EventLogger
	limiter   *shield.RateLimiter
	client    *http.Client

	now     func() time.Time
	newID   idgen.Generator
	newRand func() *rand.Rand

	pools   atomic.Pointer[photos.Pools]
	watcher atomic.Pointer[watch.Watcher]

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

// WithRandSource sets the factory for per-session random sources.
func WithRandSource(fn func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = fn }
}

// WithEventLogger records session activity to the event store.
func WithEventLogger(el *observability.EventLogger) Option {
	return func(s *Service) { s.events = el }
}

// WithHTTPClient sets the client used for http(s) manifests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// New creates a Service. The manifest is not loaded until LoadManifest.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	loveStart, _ := cfg.loveStart()

	s := &Service{
		cfg:       cfg,
		loveStart: loveStart,
		subtitle:  sanitizeHTML(cfg.Messages.Subtitle),
		logger:    logger,
		limiter:   shield.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, "/static/", "/photos/", "/healthz"),
		now:       time.Now,
		newID:     idgen.Prefixed("ses_", idgen.NanoID(16)),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(s)
	}
	// validate has already parsed the proxy list.
	s.limiter.TrustProxies(cfg.RateLimit.TrustedProxies...)
	if s.events == nil {
		s.events = observability.NewEventLogger(nil, observability.WithLogger(logger))
	}
	s.pools.Store(&photos.Pools{})
	s.root, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.cfg }

// Pools returns the pools new sessions start from.
func (s *Service) Pools() photos.Pools { return *s.pools.Load() }

// LoadManifest loads the configured manifest. Failures leave the service
// with empty pools; they are logged, never returned.
func (s *Service) LoadManifest(ctx context.Context) {
	m := photos.LoadManifest(ctx, s.cfg.Manifest, s.client, s.logger)
	p := m.Pools()
	s.pools.Store(&p)
}

// ReloadManifest swaps in a freshly read manifest. Unlike LoadManifest it
// reports failures and keeps the current pools, so a half-written file is
// retried on the next poll. Live sessions keep the pools they started with.
func (s *Service) ReloadManifest(ctx context.Context) error {
	m, err := photos.FetchManifest(ctx, s.cfg.Manifest, s.client)
	if err != nil {
		return err
	}
	p := m.Pools()
	s.pools.Store(&p)
	s.logger.Info("valentine: manifest reloaded", "couples", p.Couples.Len(), "kids", p.Kids.Len())
	return nil
}

// WatchManifest reloads the manifest whenever the file changes, until ctx
// is cancelled. Remote manifests are not watched.
func (s *Service) WatchManifest(ctx context.Context) {
	if isRemote(s.cfg.Manifest) {
		return
	}
	w := watch.New(watch.FileModTime(s.cfg.Manifest), watch.Options{
		Interval: s.cfg.ManifestPoll,
		Debounce: s.cfg.ManifestPoll / 2,
		Logger:   s.logger,
	})
	s.watcher.Store(w)
	w.OnChange(ctx, func() error { return s.ReloadManifest(ctx) })
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// CreateSession starts a session on the current pools.
func (s *Service) CreateSession(ctx context.Context) (*Session, error) {
	if s.root.Err() != nil {
		return nil, fmt.Errorf("valentine: create session: %w", ErrSessionClosed)
	}
	id := s.newID()
	sess := newSession(s.root, id, sessionDeps{
		cfg:       s.cfg,
		loveStart: s.loveStart,
		pools:     s.Pools(),
		rng:       s.newRand(),
		now:       s.now,
		events:    s.events,
		logger:    s.logger,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   observability.EventSessionCreated,
		ServiceName: "valentine",
		SessionID:   id,
		Action:      "create",
		Success:     true,
	})
	s.logger.Debug("valentine: session created", "session", id, "live", n)
	return sess, nil
}

// Session looks up a live session.
func (s *Service) Session(id string) (*Session, error) {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// CloseSession stops and forgets a session.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Close()
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// expire closes sessions idle for longer than SessionTTL and returns how
// many were closed.
func (s *Service) expire(now time.Time) int {
	var stale []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) > s.cfg.SessionTTL {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	return len(stale)
}

// Run drives the background work (session expiry, rate limiter cleanup)
// until ctx is cancelled, then closes every session.
func (s *Service) Run(ctx context.Context) {
	go s.limiter.Run(ctx)

	interval := max(s.cfg.SessionTTL/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			if n := s.expire(s.now()); n > 0 {
				s.logger.Info("valentine: sessions expired", "count", n)
			}
		}
	}
}

// Close stops every session. New sessions are refused afterwards.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		live = append(live, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.Close()
	}
}

// health is the /healthz payload.
type health struct {
	Status   string       `json:"status"`
	Sessions int          `json:"sessions"`
	Couples  int          `json:"couples"`
	Kids     int          `json:"kids"`
	Watch    *watch.Stats `json:"watch,omitempty"`
}

func (s *Service) health() health {
	p := s.Pools()
	h := health{
		Status:   "ok",
		Sessions: s.SessionCount(),
		Couples:  p.Couples.Len(),
		Kids:     p.Kids.Len(),
	}
	if w := s.watcher.Load(); w != nil {
		st := w.Stats()
		h.Watch = &st
	}
	return h
}
