package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/valentine/observability"
)

func TestOpenEventStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "events.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	db, events, err := openEventStore(path, logger)
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   observability.EventUnlocked,
		ServiceName: "valentine",
		SessionID:   "ses_1",
		Action:      "unlock",
		Success:     true,
	})
	db.Close()

	db, events, err = openEventStore(path, logger)
	if err != nil {
		t.Fatalf("reopen event store: %v", err)
	}
	defer db.Close()
	got, err := events.Query(ctx, observability.EventFilter{SessionID: "ses_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EventType != observability.EventUnlocked {
		t.Fatalf("events after reopen: %+v", got)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("VALENTINE_TEST_KEY", "")
	if v := env("VALENTINE_TEST_KEY", "fallback"); v != "fallback" {
		t.Fatalf("unset: %q", v)
	}
	t.Setenv("VALENTINE_TEST_KEY", "set")
	if v := env("VALENTINE_TEST_KEY", "fallback"); v != "set" {
		t.Fatalf("set: %q", v)
	}
}
