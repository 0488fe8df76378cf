package sentry

import (
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestScrub(t *testing.T) {
	ev := &sentry.Event{Request: &sentry.Request{
		Headers:     map[string]string{"Authorization": "Bearer x", "Cookie": "c", "Accept": "json"},
		QueryString: "access_token=secret",
	}}

	out := scrub(ev, nil)
	if _, ok := out.Request.Headers["Authorization"]; ok {
		t.Error("Expected Authorization header to be removed")
	}
	if out.Request.Headers["Accept"] != "json" {
		t.Error("Expected unrelated headers to be kept")
	}
	if out.Request.QueryString != "" {
		t.Errorf("Expected query string to be cleared, got %q", out.Request.QueryString)
	}
}

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	if err := Init(Config{}, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}
