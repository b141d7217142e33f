// Package store holds the authoritative, deduplicated, chronologically
// ordered message collection for one workspace. Every producer (initial
// snapshot, backfill page, live channel push, local optimistic send)
// writes through the same merge path, so duplicate and out-of-order
// delivery are absorbed rather than coordinated away.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

// tempIDPrefix marks locally-generated ids awaiting server confirmation.
const tempIDPrefix = "temp-"

// Sender posts a message to the backend and returns the confirmed copy.
// *rest.Client satisfies this.
type Sender interface {
	SendMessage(ctx context.Context, projectID, text string, files []domain.Attachment) (domain.Message, error)
}

// SendResult is the non-throwing outcome of Send. Expected failures
// (timeout, rejection) land here, never as a panic.
type SendResult struct {
	Success   bool
	MessageID string
	Message   string
}

// Store is the message reconciler for one workspace session.
type Store struct {
	projectID string
	selfID    string
	sender    Sender

	mu       sync.Mutex
	byID     map[string]domain.Message
	atBottom bool
	unseen   int
}

func New(projectID, selfID string, sender Sender) *Store {
	return &Store{
		projectID: projectID,
		selfID:    selfID,
		sender:    sender,
		byID:      make(map[string]domain.Message),
		atBottom:  true,
	}
}

// Merge folds a batch into the id-keyed map, last write wins per id.
// Feeding the same message twice never produces two visible entries.
func (s *Store) Merge(batch []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		s.mergeLocked(m)
	}
}

// MergeFromChannel folds a live push. A push whose sender is the local
// user is discarded while an optimistic or confirmed counterpart is
// present: the REST response for one's own sends is authoritative and
// the echo is only needed for counterpart messages.
func (s *Store) MergeFromChannel(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.SenderID == s.selfID {
		if _, ok := s.byID[m.ID]; ok {
			return
		}
		if s.pendingOptimisticLocked() {
			log.L().Debug().Str(log.FieldMessageID, m.ID).Msg("dropped self echo for in-flight send")
			return
		}
	}
	s.mergeLocked(m)
}

func (s *Store) mergeLocked(m domain.Message) {
	_, existed := s.byID[m.ID]
	s.byID[m.ID] = m
	if !existed && m.SenderID != s.selfID && !s.atBottom {
		s.unseen++
	}
}

func (s *Store) pendingOptimisticLocked() bool {
	for _, m := range s.byID {
		if m.Optimistic {
			return true
		}
	}
	return false
}

// Send appends an optimistic entry immediately, posts to the backend
// under the send timeout, then replaces the temp entry with the server
// copy. On failure the optimistic entry is rolled back and a recoverable
// result returned; the caller keeps the draft for retry.
func (s *Store) Send(ctx context.Context, body string, attachments []domain.Attachment, self domain.Participant) SendResult {
	if err := domain.ValidateDraft(body, attachments); err != nil {
		return SendResult{Success: false, Message: err.Error()}
	}

	tempID := tempIDPrefix + uuid.New().String()
	optimistic := domain.Message{
		ID:                tempID,
		Body:              body,
		Attachments:       attachments,
		SenderID:          self.ID,
		SenderRole:        self.Role,
		SenderDisplayName: self.DisplayName,
		CreatedAt:         time.Now(),
		Optimistic:        true,
	}

	s.mu.Lock()
	s.byID[tempID] = optimistic
	s.mu.Unlock()

	confirmed, err := s.sender.SendMessage(ctx, s.projectID, body, attachments)
	if err != nil {
		s.removeOptimistic(tempID)
		msg := "message could not be delivered, try again"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "sending timed out, try again"
		}
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldProjectID, s.projectID).Msg("send failed, optimistic entry removed")
		return SendResult{Success: false, Message: msg}
	}

	s.ReplaceOptimistic(tempID, confirmed)
	return SendResult{Success: true, MessageID: confirmed.ID}
}

// ReplaceOptimistic swaps a temp entry for its server-confirmed copy.
// The confirmed message is folded through the normal merge so a channel
// echo that already landed under the server id stays a single entry.
func (s *Store) ReplaceOptimistic(tempID string, confirmed domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, tempID)
	confirmed.Optimistic = false
	s.mergeLocked(confirmed)
}

func (s *Store) removeOptimistic(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, tempID)
}

// Messages returns the rendered sequence: ascending by CreatedAt with id
// as the tie-break, regardless of arrival order.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	out := make([]domain.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len reports the number of visible entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// SetAtBottom records whether the viewer is scrolled to the bottom.
// While at bottom new arrivals are considered seen; away from it they
// accumulate in Unseen, backing the "new messages" affordance.
func (s *Store) SetAtBottom(atBottom bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atBottom = atBottom
	if atBottom {
		s.unseen = 0
	}
}

// Unseen reports counterpart messages that arrived while scrolled away.
func (s *Store) Unseen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen
}
