package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hazyhaar/valentine/dbopen"
	"github.com/hazyhaar/valentine/idgen"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestInit_CreatesEventTable(t *testing.T) {
	db := setupObsDB(t)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='business_event_logs'").Scan(&count)
	if count != 1 {
		t.Fatal("business_event_logs not found")
	}
	if err := Init(db); err != nil {
		t.Fatalf("Init should be idempotent: %v", err)
	}
}

func TestEventLogger_LogEvent(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db)

	el.LogEvent(context.Background(), BusinessEvent{
		EventType:   EventAttempt,
		ServiceName: "valentine",
		SessionID:   "ses_1",
		Action:      "mismatch",
		Details:     map[string]any{"year": 2025, "month": 1, "day": 14},
		Success:     false,
	})

	var eventType, action, details string
	var success bool
	db.QueryRow("SELECT event_type, action, details, success FROM business_event_logs LIMIT 1").
		Scan(&eventType, &action, &details, &success)
	if eventType != EventAttempt || action != "mismatch" || success {
		t.Fatalf("row: %q %q %v", eventType, action, success)
	}
	if details != `{"day":14,"month":1,"year":2025}` {
		t.Fatalf("details: %s", details)
	}
}

func TestEventLogger_WithIDGenerator(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db, WithEventIDGenerator(idgen.Sequence("evt_")))

	el.LogEvent(context.Background(), BusinessEvent{EventType: "a", ServiceName: "s", Action: "x", Success: true})
	el.LogEvent(context.Background(), BusinessEvent{EventType: "b", ServiceName: "s", Action: "x", Success: true})

	var ids []string
	rows, err := db.Query("SELECT event_id FROM business_event_logs ORDER BY event_id")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		rows.Scan(&id)
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != "evt_1" || ids[1] != "evt_2" {
		t.Fatalf("ids: %v", ids)
	}
}

func TestEventLogger_Query(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db)
	ctx := context.Background()

	el.LogEvent(ctx, BusinessEvent{EventType: EventSessionCreated, ServiceName: "valentine", SessionID: "ses_a", Action: "create", Success: true})
	el.LogEvent(ctx, BusinessEvent{EventType: EventAttempt, ServiceName: "valentine", SessionID: "ses_a", Action: "match", Success: true})
	el.LogEvent(ctx, BusinessEvent{EventType: EventSessionCreated, ServiceName: "valentine", SessionID: "ses_b", Action: "create", Success: true})

	got, err := el.Query(ctx, EventFilter{SessionID: "ses_a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].EventType != EventSessionCreated || got[1].Action != "match" {
		t.Fatalf("session filter: %+v", got)
	}

	got, err = el.Query(ctx, EventFilter{EventType: EventSessionCreated, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SessionID != "ses_a" {
		t.Fatalf("type filter: %+v", got)
	}
}

func TestEventLogger_NilDB(t *testing.T) {
	el := NewEventLogger(nil)
	el.LogEvent(context.Background(), BusinessEvent{EventType: "x"})
	got, err := el.Query(context.Background(), EventFilter{})
	if err != nil || got != nil {
		t.Fatalf("nil db query: %v %v", got, err)
	}

	var nilLogger *EventLogger
	nilLogger.LogEvent(context.Background(), BusinessEvent{EventType: "x"})
}

func TestCleanup_Retention(t *testing.T) {
	db := setupObsDB(t)

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec("INSERT INTO business_event_logs (event_id, event_type, service_name, action, success, created_at) VALUES ('e1', 'test', 'svc', 'act', 1, ?)", oldTs)
	db.Exec("INSERT INTO business_event_logs (event_id, event_type, service_name, action, success, created_at) VALUES ('e2', 'test', 'svc', 'act', 1, ?)", time.Now().Unix())

	n, err := Cleanup(context.Background(), db, RetentionConfig{EventLogsDays: 30})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed: got %d", n)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM business_event_logs").Scan(&count)
	if count != 1 {
		t.Fatalf("business_event_logs: got %d", count)
	}
}

func TestCleanup_SkipsZeroDays(t *testing.T) {
	db := setupObsDB(t)

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec("INSERT INTO business_event_logs (event_id, event_type, service_name, action, success, created_at) VALUES ('e1', 'test', 'svc', 'act', 1, ?)", oldTs)

	if _, err := Cleanup(context.Background(), db, RetentionConfig{}); err != nil {
		t.Fatal(err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM business_event_logs").Scan(&count)
	if count != 1 {
		t.Fatalf("should not clean when days=0: got %d", count)
	}
}
