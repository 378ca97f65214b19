package kit

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetSessionID(ctx) != "" || GetRemoteAddr(ctx) != "" {
		t.Fatal("empty context should yield empty values")
	}

	ctx = WithTraceID(ctx, "abcd1234")
	ctx = WithSessionID(ctx, "ses_1")
	ctx = WithRemoteAddr(ctx, "10.0.0.1")

	if got := GetTraceID(ctx); got != "abcd1234" {
		t.Fatalf("trace id: %q", got)
	}
	if got := GetSessionID(ctx); got != "ses_1" {
		t.Fatalf("session id: %q", got)
	}
	if got := GetRemoteAddr(ctx); got != "10.0.0.1" {
		t.Fatalf("remote addr: %q", got)
	}
}
