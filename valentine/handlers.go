// CLAUDE:SUMMARY HTTP surface: pages, photo files, session API and the SSE render stream.
package valentine

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/valentine/horosafe"
	"github.com/hazyhaar/valentine/kit"
	"github.com/hazyhaar/valentine/shield"
)

//go:embed web
var webFS embed.FS

var pages = template.Must(template.ParseFS(webFS, "web/*.html"))

// streamKeepAlive is the SSE comment interval that keeps proxies from
// closing an idle stream.
const streamKeepAlive = 15 * time.Second

// Router returns the HTTP handler for the whole service.
func (s *Service) Router() http.Handler {
	static, _ := fs.Sub(webFS, "web")

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.limiter) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.health())
	})
	r.Get("/", s.handleIndex)
	r.Get("/kids", s.handleKids)
	r.Handle("/static/*", http.FileServerFS(static))
	r.Get("/photos/{set}/*", s.handlePhoto)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(sessionContext)
			r.Get("/", s.handleSnapshot)
			r.Delete("/", s.handleClose)
			r.Post("/events", s.handleEvent)
			r.Get("/calendar", s.handleCalendar)
			r.Get("/stream", s.handleStream)
			r.Get("/reveal", s.handleReveal)
		})
	})
	return r
}

// sessionContext tags the request context with the session id from the
// path, so shield.GetLogger lines carry it.
func sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithSessionID(r.Context(), chi.URLParam(r, "id"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pages.ExecuteTemplate(w, "index.html", struct {
		Title    string
		Subtitle template.HTML
		Years    []int
	}{
		Title:    s.cfg.Messages.Title,
		Subtitle: s.subtitle,
		Years:    s.cfg.Years.Years(),
	})
	if err != nil {
		shield.GetLogger(r.Context()).Error("valentine: render index", "error", err)
	}
}

func (s *Service) handleKids(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pages.ExecuteTemplate(w, "kids.html", struct {
		Title  string
		Photos []string
	}{
		Title:  s.cfg.Messages.Title,
		Photos: s.Pools().Kids.IDs(),
	})
	if err != nil {
		shield.GetLogger(r.Context()).Error("valentine: render kids", "error", err)
	}
}

func (s *Service) handlePhoto(w http.ResponseWriter, r *http.Request) {
	set := chi.URLParam(r, "set")
	if set != "couples" && set != "kids" {
		http.NotFound(w, r)
		return
	}
	path, err := horosafe.SafePath(filepath.Join(s.cfg.AssetsDir, set), chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.CreateSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := sess.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
		View
	}{ID: sess.ID(), View: view})
}

func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := sess.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Service) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}
	view, err := sess.Apply(r.Context(), in)
	if err != nil {
		shield.GetLogger(r.Context()).Debug("valentine: event rejected", "kind", in.Kind, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleCalendar(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	grid, err := sess.Grid(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (s *Service) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	rv, err := sess.Reveal(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()
	log := shield.GetLogger(r.Context())
	log.Debug("valentine: stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			flusher.Flush()
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(ev.Data)
			if err != nil {
				log.Warn("valentine: encode event", "event", ev.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}
