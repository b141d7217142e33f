package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
)

var (
	student = domain.Participant{ID: "u-student", DisplayName: "Asha", Role: domain.RoleStudent}
	company = domain.Participant{ID: "u-company", DisplayName: "Nimbus", Role: domain.RoleCompany}
)

type stubSender struct {
	mu      sync.Mutex
	confirm domain.Message
	err     error
	// onSend runs inside SendMessage, before returning, so tests can
	// simulate a channel echo racing the REST response.
	onSend func()
	calls  int
}

func (s *stubSender) SendMessage(ctx context.Context, projectID, text string, files []domain.Attachment) (domain.Message, error) {
	s.mu.Lock()
	s.calls++
	onSend := s.onSend
	confirm, err := s.confirm, s.err
	s.mu.Unlock()
	if onSend != nil {
		onSend()
	}
	if err != nil {
		return domain.Message{}, err
	}
	return confirm, nil
}

func msg(id, senderID string, at time.Time) domain.Message {
	return domain.Message{ID: id, Body: "body-" + id, SenderID: senderID, CreatedAt: at}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMergeIsIdempotent(t *testing.T) {
	s := New("p-1", student.ID, &stubSender{})
	base := time.Now()
	b1 := []domain.Message{msg("m-1", company.ID, base), msg("m-2", company.ID, base.Add(time.Second))}
	b2 := []domain.Message{msg("m-2", company.ID, base.Add(time.Second)), msg("m-3", company.ID, base.Add(2*time.Second))}

	s.Merge(b1)
	s.Merge(b2)
	s.Merge(b1) // redeliver the first batch entirely

	if got := s.Len(); got != 3 {
		t.Fatalf("expected 3 messages after overlapping merges, got %d: %v", got, ids(s.Messages()))
	}
}

func TestMessagesSortedByCreatedAtRegardlessOfArrival(t *testing.T) {
	s := New("p-1", student.ID, &stubSender{})
	base := time.Now()
	// Arrival order deliberately scrambled across producers.
	s.Merge([]domain.Message{msg("m-3", company.ID, base.Add(3*time.Second))})
	s.Merge([]domain.Message{msg("m-1", company.ID, base.Add(time.Second)), msg("m-4", company.ID, base.Add(4*time.Second))})
	s.MergeFromChannel(msg("m-2", company.ID, base.Add(2*time.Second)))

	got := s.Messages()
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("order not chronological: %v", ids(got))
		}
	}
	want := []string{"m-1", "m-2", "m-3", "m-4"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (%v)", i, got[i].ID, id, ids(got))
		}
	}
}

func TestSendOptimisticThenConfirmed(t *testing.T) {
	sender := &stubSender{confirm: msg("m-101", student.ID, time.Now())}
	s := New("p-1", student.ID, sender)

	res := s.Send(context.Background(), "Starting today", nil, student)
	if !res.Success {
		t.Fatalf("send failed: %s", res.Message)
	}
	if res.MessageID != "m-101" {
		t.Fatalf("expected confirmed id m-101, got %s", res.MessageID)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("expected exactly one entry after confirm, got %d: %v", got, ids(s.Messages()))
	}
	final := s.Messages()[0]
	if final.ID != "m-101" || final.Optimistic {
		t.Fatalf("expected confirmed m-101, got %+v", final)
	}
	if strings.HasPrefix(final.ID, "temp-") {
		t.Fatal("temp id leaked into final list")
	}
}

func TestSendAppearsImmediatelyWhileInFlight(t *testing.T) {
	sender := &stubSender{confirm: msg("m-101", student.ID, time.Now())}
	s := New("p-1", student.ID, sender)

	var visibleDuringFlight int
	sender.onSend = func() { visibleDuringFlight = s.Len() }

	if res := s.Send(context.Background(), "hello", nil, student); !res.Success {
		t.Fatalf("send failed: %s", res.Message)
	}
	if visibleDuringFlight != 1 {
		t.Fatalf("optimistic entry not visible during flight: %d", visibleDuringFlight)
	}
}

func TestSendRollbackOnFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("backend rejected it")}
	s := New("p-1", student.ID, sender)

	res := s.Send(context.Background(), "hello", nil, student)
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Message == "" {
		t.Fatal("expected a human-readable failure message")
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("optimistic entry not rolled back: %d entries", got)
	}
}

func TestSendTimeoutRollsBack(t *testing.T) {
	sender := &stubSender{err: context.DeadlineExceeded}
	s := New("p-1", student.ID, sender)

	res := s.Send(context.Background(), "hello", nil, student)
	if res.Success {
		t.Fatal("expected timeout to fail the send")
	}
	if !strings.Contains(res.Message, "timed out") {
		t.Fatalf("expected timeout message, got %q", res.Message)
	}
	if s.Len() != 0 {
		t.Fatal("optimistic entry survived a timeout")
	}
}

func TestSendValidationRejectedBeforeNetwork(t *testing.T) {
	sender := &stubSender{}
	s := New("p-1", student.ID, sender)

	if res := s.Send(context.Background(), "   ", nil, student); res.Success {
		t.Fatal("expected validation failure")
	}
	if sender.calls != 0 {
		t.Fatalf("validation failure still reached the network: %d calls", sender.calls)
	}
	if s.Len() != 0 {
		t.Fatal("validation failure left an optimistic entry behind")
	}
}

func TestSelfEchoSuppressedWhileOptimisticInFlight(t *testing.T) {
	confirmed := msg("m-101", student.ID, time.Now())
	sender := &stubSender{confirm: confirmed}
	s := New("p-1", student.ID, sender)

	// Channel echo lands before the REST response resolves.
	sender.onSend = func() {
		s.MergeFromChannel(confirmed)
	}

	if res := s.Send(context.Background(), "hello", nil, student); !res.Success {
		t.Fatalf("send failed: %s", res.Message)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("echo before confirm produced %d entries: %v", got, ids(s.Messages()))
	}
}

func TestSelfEchoAfterConfirmIsNoDuplicate(t *testing.T) {
	confirmed := msg("m-101", student.ID, time.Now())
	s := New("p-1", student.ID, &stubSender{confirm: confirmed})

	if res := s.Send(context.Background(), "hello", nil, student); !res.Success {
		t.Fatal("send failed")
	}
	// Echo arrives after the REST confirm.
	s.MergeFromChannel(confirmed)

	if got := s.Len(); got != 1 {
		t.Fatalf("echo after confirm produced %d entries", got)
	}
}

func TestSelfMessageFromElsewhereAccepted(t *testing.T) {
	// Same user, different device, no send in flight here: the push is
	// the only copy and must not be suppressed.
	s := New("p-1", student.ID, &stubSender{})
	s.MergeFromChannel(msg("m-200", student.ID, time.Now()))
	if s.Len() != 1 {
		t.Fatal("own message from another device was wrongly suppressed")
	}
}

func TestCounterpartPushAccepted(t *testing.T) {
	s := New("p-1", student.ID, &stubSender{})
	s.MergeFromChannel(msg("m-50", company.ID, time.Now()))
	s.MergeFromChannel(msg("m-50", company.ID, time.Now()))
	if s.Len() != 1 {
		t.Fatal("duplicate counterpart push produced a visible duplicate")
	}
}

func TestUnseenCounting(t *testing.T) {
	s := New("p-1", student.ID, &stubSender{})
	base := time.Now()

	s.SetAtBottom(false)
	s.Merge([]domain.Message{msg("m-1", company.ID, base)})
	s.Merge([]domain.Message{msg("m-1", company.ID, base)}) // redelivery must not double count
	s.Merge([]domain.Message{msg("m-2", company.ID, base.Add(time.Second))})

	if got := s.Unseen(); got != 2 {
		t.Fatalf("expected 2 unseen, got %d", got)
	}

	s.SetAtBottom(true)
	if got := s.Unseen(); got != 0 {
		t.Fatalf("returning to bottom should clear unseen, got %d", got)
	}

	// While at bottom new arrivals are considered seen.
	s.Merge([]domain.Message{msg("m-3", company.ID, base.Add(2*time.Second))})
	if got := s.Unseen(); got != 0 {
		t.Fatalf("at-bottom arrival counted as unseen: %d", got)
	}
}
