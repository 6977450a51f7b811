package bot

import (
	"testing"
	"time"
)

func TestPendingWishes(t *testing.T) {
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	p := newPendingWishes(time.Minute)
	p.now = func() time.Time { return now }

	if p.take(1) {
		t.Fatalf("take on empty set")
	}

	p.set(1)
	if !p.take(1) {
		t.Fatalf("expected pending")
	}
	if p.take(1) {
		t.Fatalf("take must clear the state")
	}

	p.set(2)
	now = now.Add(2 * time.Minute)
	if p.take(2) {
		t.Fatalf("expired entry must not be taken")
	}

	p.set(3)
	p.clear(3)
	if p.take(3) {
		t.Fatalf("cleared entry must not be taken")
	}
}
