package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
)

var (
	self        = domain.Participant{ID: "u-self", DisplayName: "Asha", Role: domain.RoleStudent}
	counterpart = domain.Participant{ID: "u-other", DisplayName: "Nimbus", Role: domain.RoleCompany}
)

type captureEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *captureEmitter) Emit(ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *captureEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.EventType()
	}
	return out
}

func newTestCoordinator(ttl, idle time.Duration) (*Coordinator, *captureEmitter) {
	em := &captureEmitter{}
	return NewCoordinator("p-1", self, em, ttl, idle), em
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRemoteSignalExpiresWithoutStop(t *testing.T) {
	c, _ := newTestCoordinator(60*time.Millisecond, time.Second)
	defer c.Close()

	c.HandleStart(&domain.TypingStartEvent{ProjectID: "p-1", UserID: counterpart.ID, SenderName: counterpart.DisplayName, SenderRole: counterpart.Role})
	if len(c.Typing()) != 1 {
		t.Fatal("typing indicator not recorded")
	}

	// No typing_stop ever arrives; the entry must clear on its own.
	waitFor(t, time.Second, func() bool { return len(c.Typing()) == 0 })
}

func TestRepeatSignalRefreshesExpiry(t *testing.T) {
	c, _ := newTestCoordinator(80*time.Millisecond, time.Second)
	defer c.Close()

	start := &domain.TypingStartEvent{ProjectID: "p-1", UserID: counterpart.ID, SenderName: counterpart.DisplayName, SenderRole: counterpart.Role}
	c.HandleStart(start)
	time.Sleep(50 * time.Millisecond)
	c.HandleStart(start)
	time.Sleep(50 * time.Millisecond)

	// 100ms after the first signal but only 50ms after the refresh.
	if len(c.Typing()) != 1 {
		t.Fatal("refreshed indicator expired too early")
	}
	waitFor(t, time.Second, func() bool { return len(c.Typing()) == 0 })
}

func TestStopClearsImmediately(t *testing.T) {
	c, _ := newTestCoordinator(time.Minute, time.Second)
	defer c.Close()

	c.HandleStart(&domain.TypingStartEvent{ProjectID: "p-1", UserID: counterpart.ID})
	c.HandleStop(&domain.TypingStopEvent{ProjectID: "p-1", UserID: counterpart.ID})
	if len(c.Typing()) != 0 {
		t.Fatal("typing_stop did not clear the indicator")
	}
}

func TestIndependentExpiryPerUser(t *testing.T) {
	c, _ := newTestCoordinator(70*time.Millisecond, time.Second)
	defer c.Close()

	c.HandleStart(&domain.TypingStartEvent{ProjectID: "p-1", UserID: "u-a"})
	time.Sleep(40 * time.Millisecond)
	c.HandleStart(&domain.TypingStartEvent{ProjectID: "p-1", UserID: "u-b"})

	// u-a expires first; u-b must survive it.
	waitFor(t, time.Second, func() bool {
		typing := c.Typing()
		return len(typing) == 1 && typing[0].UserID == "u-b"
	})
	waitFor(t, time.Second, func() bool { return len(c.Typing()) == 0 })
}

func TestLocalUserNeverRendered(t *testing.T) {
	c, _ := newTestCoordinator(time.Minute, time.Second)
	defer c.Close()

	c.HandleStart(&domain.TypingStartEvent{ProjectID: "p-1", UserID: self.ID, SenderName: self.DisplayName})
	if len(c.Typing()) != 0 {
		t.Fatal("local user's own typing signal was rendered")
	}
}

func TestLocalActivityEmitsStartOnceThenDebouncedStop(t *testing.T) {
	c, em := newTestCoordinator(time.Minute, 50*time.Millisecond)
	defer c.Close()

	c.NotifyActivity("h")
	c.NotifyActivity("he")
	c.NotifyActivity("hel")

	types := em.types()
	if len(types) != 1 || types[0] != domain.EventTypingStart {
		t.Fatalf("expected a single typing_start, got %v", types)
	}

	waitFor(t, time.Second, func() bool {
		types := em.types()
		return len(types) == 2 && types[1] == domain.EventTypingStop
	})
}

func TestWhitespaceActivityIgnored(t *testing.T) {
	c, em := newTestCoordinator(time.Minute, 50*time.Millisecond)
	defer c.Close()

	c.NotifyActivity("   ")
	if len(em.types()) != 0 {
		t.Fatal("whitespace-only draft emitted a typing signal")
	}
}

func TestSendStopsTypingImmediately(t *testing.T) {
	c, em := newTestCoordinator(time.Minute, time.Minute)
	defer c.Close()

	c.NotifyActivity("hello")
	c.NotifySend()

	types := em.types()
	if len(types) != 2 || types[1] != domain.EventTypingStop {
		t.Fatalf("expected start then immediate stop, got %v", types)
	}

	// A fresh keystroke after send starts a new cycle.
	c.NotifyActivity("again")
	types = em.types()
	if len(types) != 3 || types[2] != domain.EventTypingStart {
		t.Fatalf("expected a new typing_start after send, got %v", types)
	}
}
