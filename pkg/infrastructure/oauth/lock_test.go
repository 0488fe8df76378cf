package oauth

import (
	"context"
	"testing"
	"time"
)

func TestKeyedLock_WaiterCanAbandon(t *testing.T) {
	l := newKeyedLock()

	unlock, err := l.Lock(context.Background(), "fitbit/demo")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "fitbit/demo"); err == nil {
		t.Fatal("Expected waiter to give up on deadline")
	}

	// A different key is independent.
	other, err := l.Lock(context.Background(), "healthplanet/demo")
	if err != nil {
		t.Fatalf("Lock on other key failed: %v", err)
	}
	other()

	unlock()
	unlock()
	if n := l.size(); n != 0 {
		t.Errorf("Expected no lock entries after release, got %d", n)
	}
}
