// Package session is the top-level controller for one workspace mount.
// It owns the transport channel's lifecycle exactly once per session,
// loads the initial snapshot, wires presence and typing to channel
// events, runs the fallback poller, and exposes the operations the view
// layer calls: Send, LoadMore, MarkRead, and View.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kmrathod29/seribro-sub002/internal/config"
	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/internal/poller"
	"github.com/kmrathod29/seribro-sub002/internal/presence"
	"github.com/kmrathod29/seribro-sub002/internal/rest"
	"github.com/kmrathod29/seribro-sub002/internal/statusflow"
	"github.com/kmrathod29/seribro-sub002/internal/store"
	"github.com/kmrathod29/seribro-sub002/internal/transport"
	"github.com/kmrathod29/seribro-sub002/internal/typing"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

var ErrNotStarted = errors.New("session not started")

// View is the render-ready projection handed to the UI layer.
type View struct {
	Messages          []domain.Message
	Typing            []domain.TypingState
	CounterpartOnline bool
	Unseen            int
	Status            statusflow.Projection
	Actions           []statusflow.Action
}

// Session binds the sync core together for one project workspace.
type Session struct {
	cfg  *config.Config
	rest *rest.Client

	projectID   string
	self        domain.Participant
	counterpart domain.Participant

	channel  *transport.Channel
	store    *store.Store
	presence *presence.Tracker
	typing   *typing.Coordinator
	poller   *poller.Poller

	mu         sync.Mutex
	starting   bool
	started    bool
	status     string
	rated      bool
	pagination domain.Pagination

	cancel context.CancelFunc
}

func New(cfg *config.Config, restClient *rest.Client, projectID string) *Session {
	return &Session{
		cfg:       cfg,
		rest:      restClient,
		projectID: projectID,
	}
}

// Start loads the snapshot, builds the collaborators, and brings the
// channel and poller up. It is idempotent: the channel is created once
// per session, never per render, so reconnect storms cannot start a
// second socket.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.starting || s.started {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()

	snap, err := s.rest.GetSnapshot(ctx, s.projectID)
	if err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		return fmt.Errorf("load workspace: %w", err)
	}

	self, counterpart := resolveParticipants(snap)
	s.mu.Lock()
	s.self = self
	s.counterpart = counterpart
	s.status = snap.Project.Status
	s.pagination = domain.Pagination{CurrentPage: 1, HasMore: true}
	s.mu.Unlock()

	s.store = store.New(s.projectID, self.ID, s.rest)
	s.store.Merge(snap.RecentMessages)

	s.presence = presence.NewTracker()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.channel = transport.NewChannel(s.cfg.Channel, s.handleEvent, s.handleState)
	s.typing = typing.NewCoordinator(s.projectID, self, s.channel, s.cfg.Typing.SignalTTL, s.cfg.Typing.IdleStop)

	s.channel.JoinRoom(s.projectID, self.ID)
	s.channel.Connect(runCtx)

	s.poller = poller.New(s.cfg.Poll.Interval, s.fetchLatest)
	s.poller.Start(runCtx)

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	log.Ctx(ctx).Info().
		Str(log.FieldProjectID, s.projectID).
		Str(log.FieldUserID, self.ID).
		Msg("workspace session started")
	return nil
}

func resolveParticipants(snap *rest.Snapshot) (self, counterpart domain.Participant) {
	if snap.Student.ID == snap.CurrentUserID {
		return snap.Student, snap.Company
	}
	return snap.Company, snap.Student
}

// handleEvent dispatches decoded channel frames. The switch is over the
// closed event set; the transport already dropped unknown types.
func (s *Session) handleEvent(ev domain.Event) {
	switch e := ev.(type) {
	case *domain.NewMessageEvent:
		s.store.MergeFromChannel(e.Message)
	case *domain.TypingStartEvent:
		s.typing.HandleStart(e)
	case *domain.TypingStopEvent:
		s.typing.HandleStop(e)
	case *domain.UserOnlineEvent:
		s.presence.MarkOnline(e.UserID)
	case *domain.UserOfflineEvent:
		s.presence.MarkOffline(e.UserID)
	}
}

// handleState clears presence on every disconnect: online status is only
// meaningful while connected. Messages survive; typing expires on its
// own timers.
func (s *Session) handleState(connected bool) {
	if !connected {
		s.presence.Reset()
	}
}

// Send validates, appends optimistically, and posts the draft. The
// result is never a panic; failures tell the caller to keep the draft.
func (s *Session) Send(ctx context.Context, body string, attachments []domain.Attachment) store.SendResult {
	if !s.isStarted() {
		return store.SendResult{Success: false, Message: ErrNotStarted.Error()}
	}
	s.typing.NotifySend()
	return s.store.Send(ctx, body, attachments, s.selfParticipant())
}

// LoadMore fetches the next backfill page and folds it through the
// reconciler. The cursor only advances; re-entering the workspace resets
// it via Start.
func (s *Session) LoadMore(ctx context.Context) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	s.mu.Lock()
	if !s.pagination.HasMore {
		s.mu.Unlock()
		return nil
	}
	next := s.pagination.CurrentPage + 1
	s.mu.Unlock()

	page, err := s.rest.GetMessages(ctx, s.projectID, next)
	if err != nil {
		return fmt.Errorf("load more: %w", err)
	}

	s.store.Merge(page.Messages)

	s.mu.Lock()
	if page.Pagination.CurrentPage > s.pagination.CurrentPage {
		s.pagination = page.Pagination
	}
	s.mu.Unlock()

	log.Ctx(ctx).Debug().
		Str(log.FieldProjectID, s.projectID).
		Int(log.FieldPage, next).
		Msg("backfill page merged")
	return nil
}

// MarkRead is fire-and-forget with a short timeout. Failure never blocks
// or rolls back message delivery.
func (s *Session) MarkRead(ctx context.Context) {
	if !s.isStarted() {
		return
	}
	s.store.SetAtBottom(true)
	go func() {
		// Detached from the caller's lifetime; the rest client applies
		// its own 5s deadline.
		_ = s.rest.MarkRead(context.WithoutCancel(ctx), s.projectID)
	}()
}

// TypingActivity reports local draft input so counterparts see the
// indicator.
func (s *Session) TypingActivity(draft string) {
	if s.isStarted() {
		s.typing.NotifyActivity(draft)
	}
}

// SetAtBottom tracks the viewer's scroll position for the new-messages
// affordance.
func (s *Session) SetAtBottom(atBottom bool) {
	if s.isStarted() {
		s.store.SetAtBottom(atBottom)
	}
}

// SetStatus ingests a status change pushed by the surrounding app (the
// backend owns transitions; this only re-projects).
func (s *Session) SetStatus(raw string) {
	s.mu.Lock()
	s.status = raw
	s.mu.Unlock()
}

// RecordRating hides the one-time rate-counterpart action.
func (s *Session) RecordRating() {
	s.mu.Lock()
	s.rated = true
	s.mu.Unlock()
}

// View assembles the render-ready state.
func (s *Session) View() View {
	if !s.isStarted() {
		return View{}
	}

	s.mu.Lock()
	status := s.status
	rated := s.rated
	counterpart := s.counterpart
	role := s.self.Role
	s.mu.Unlock()

	return View{
		Messages:          s.store.Messages(),
		Typing:            s.typing.Typing(),
		CounterpartOnline: s.presence.IsOnline(counterpart.ID),
		Unseen:            s.store.Unseen(),
		Status:            statusflow.Project(status),
		Actions:           statusflow.Actions(status, role, rated),
	}
}

// fetchLatest is the poller's fetch: first page, same merge path as the
// channel, safe to run while the channel is healthy because merge is
// idempotent.
func (s *Session) fetchLatest(ctx context.Context) error {
	page, err := s.rest.GetMessages(ctx, s.projectID, 1)
	if err != nil {
		return err
	}
	s.store.Merge(page.Messages)
	return nil
}

// Close tears the session down: poller stopped, channel closed, presence
// cleared, typing timers released.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.poller.Stop()
	s.channel.Close()
	s.typing.Close()
	s.presence.Reset()

	log.L().Info().Str(log.FieldProjectID, s.projectID).Msg("workspace session closed")
}

func (s *Session) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) selfParticipant() domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}
