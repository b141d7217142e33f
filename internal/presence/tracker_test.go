package presence

import (
	"sort"
	"testing"
)

func TestMarkOnlineOffline(t *testing.T) {
	tr := NewTracker()

	if tr.IsOnline("a") {
		t.Fatal("fresh tracker reported a user online")
	}

	tr.MarkOnline("a")
	tr.MarkOnline("b")
	if !tr.IsOnline("a") || !tr.IsOnline("b") {
		t.Fatal("marked users not reported online")
	}

	tr.MarkOffline("a")
	if tr.IsOnline("a") {
		t.Fatal("user still online after MarkOffline")
	}
	if !tr.IsOnline("b") {
		t.Fatal("unrelated user dropped by MarkOffline")
	}
}

func TestResetClearsEverythingOnDisconnect(t *testing.T) {
	tr := NewTracker()
	tr.MarkOnline("a")
	tr.MarkOnline("b")

	// Disconnect clears the whole set even with no explicit offline
	// events for a or b.
	tr.Reset()

	if tr.IsOnline("a") || tr.IsOnline("b") {
		t.Fatal("presence survived a reset")
	}
	if got := tr.Online(); len(got) != 0 {
		t.Fatalf("expected empty set after reset, got %v", got)
	}
}

func TestOnlineSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.MarkOnline("b")
	tr.MarkOnline("a")
	tr.MarkOnline("a") // idempotent

	got := tr.Online()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected online set: %v", got)
	}
}
