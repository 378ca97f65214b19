package valentine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/valentine/kit"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, cfg *Config) (*fixture, http.Handler) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit = RateLimitConfig{RPS: 1000, Burst: 1000}
	}
	f := newFixture(t, cfg)
	return f, f.svc.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandlers_UnlockFlow(t *testing.T) {
	_, h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/sessions/", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID string `json:"id"`
		View
	}](t, rec)
	require.Equal(t, "ses_1", created.ID)
	require.Len(t, created.Collage, 10)
	require.Equal(t, "February 2026", created.Grid.Title)

	base := "/api/sessions/" + created.ID
	for _, body := range []string{
		`{"kind":"surface_opened"}`,
		`{"kind":"year_changed","value":2025}`,
		`{"kind":"month_next"}`,
		`{"kind":"day_clicked","value":24}`,
	} {
		rec := do(t, h, http.MethodPost, base+"/events", body)
		require.Equal(t, http.StatusOK, rec.Code, body+": "+rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, base+"/reveal", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/events", `{"kind":"submit"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[View](t, rec)
	require.True(t, v.Unlocked)
	require.False(t, v.ModalOpen)

	rec = do(t, h, http.MethodGet, base+"/reveal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rv := decode[RevealView](t, rec)
	require.Len(t, rv.Strips, 2)
	require.Len(t, rv.Heart, 14)
	require.Len(t, rv.Rewards, 6)
	require.Equal(t, "/kids", rv.KidsLink)

	rec = do(t, h, http.MethodGet, base+"/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"title":"March 2025"`)

	rec = do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[View](t, rec).Unlocked)
}

func TestHandlers_Errors(t *testing.T) {
	_, h := newTestRouter(t, nil)
	rec := do(t, h, http.MethodPost, "/api/sessions/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	events := "/api/sessions/ses_1/events"

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown kind", http.MethodPost, events, `{"kind":"wink"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, events, `{"kind":`, http.StatusBadRequest},
		{"year outside window", http.MethodPost, events, `{"kind":"year_changed","value":2035}`, http.StatusBadRequest},
		{"missing day", http.MethodPost, events, `{"kind":"day_clicked"}`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, events, `{"kind":"` + strings.Repeat("x", 20<<10) + `"}`, http.StatusRequestEntityTooLarge},
		{"unknown session", http.MethodGet, "/api/sessions/ses_9", "", http.StatusNotFound},
		{"bad session id", http.MethodGet, "/api/sessions/ses%20x/calendar", "", http.StatusNotFound},
		{"close unknown", http.MethodDelete, "/api/sessions/ses_9", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			require.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHandlers_CloseSession(t *testing.T) {
	_, h := newTestRouter(t, nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/sessions/", "").Code)

	rec := do(t, h, http.MethodDelete, "/api/sessions/ses_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/sessions/ses_1/events", `{"kind":"month_next"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusGone, statusFor(ErrSessionClosed))
	require.Equal(t, http.StatusForbidden, statusFor(ErrLocked))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestHandlers_Pages(t *testing.T) {
	_, h := newTestRouter(t, &Config{Messages: MessagesConfig{
		Title:    "Be mine?",
		Subtitle: `<b>hello</b><script>alert(1)</script>`,
	}})

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Be mine?")
	require.Contains(t, body, "<b>hello</b>")
	require.NotContains(t, body, "alert(1)")
	require.Contains(t, body, `<option value="2030"`)
	require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	require.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec = do(t, h, http.MethodGet, "/kids", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/photos/kids/k01.jpg")

	rec = do(t, h, http.MethodGet, "/static/app.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/api/sessions")

	rec = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hv := decode[health](t, rec)
	require.Equal(t, "ok", hv.Status)
	require.Equal(t, 8, hv.Kids)
}

func TestHandlers_Photos(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(assets, "couples"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "couples", "c01.jpg"), []byte("jpeg"), 0o644))
	_, h := newTestRouter(t, &Config{AssetsDir: assets})

	rec := do(t, h, http.MethodGet, "/photos/couples/c01.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "jpeg", rec.Body.String())

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/photos/secrets/c01.jpg", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/photos/kids/missing.jpg", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/photos/couples/..%2f..%2fconfig.yaml", "").Code)
}

func TestHandlers_RateLimit(t *testing.T) {
	_, h := newTestRouter(t, &Config{RateLimit: RateLimitConfig{RPS: 0.001, Burst: 2}})

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/sessions/", "").Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/sessions/", "").Code)
	rec := do(t, h, http.MethodPost, "/api/sessions/", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.99")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health checks are never limited.
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

// readEvent returns the next SSE event name, skipping comments and data.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
			return name
		}
	}
}

func TestHandlers_Stream(t *testing.T) {
	_, h := newTestRouter(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions/", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/ses_1/stream", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	r := bufio.NewReader(stream.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	resp, err = http.Post(srv.URL+"/api/sessions/ses_1/events", "application/json", strings.NewReader(`{"kind":"submit"}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, EventOutcome, readEvent(t, r))
	require.Equal(t, EventShake, readEvent(t, r))

	del, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/ses_1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(del)
	require.NoError(t, err)
	resp.Body.Close()

	for {
		if readEvent(t, r) == "closed" {
			break
		}
	}
}

func TestSessionContext(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Use(sessionContext)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			got = kit.GetSessionID(r.Context())
		})
	})
	do(t, r, http.MethodGet, "/api/sessions/ses_7/", "")
	require.Equal(t, "ses_7", got)
}
