// Package typing keeps the time-bounded "who is typing" map. Remote
// signals carry an independent per-user expiry so one silent or
// disconnected counterpart never blocks another's indicator from
// clearing. Local input drives debounced outbound signals.
package typing

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
)

// Emitter sends an outbound typing event over the channel. The transport
// satisfies this; emission is best-effort.
type Emitter interface {
	Emit(ev domain.Event)
}

type entry struct {
	state domain.TypingState
	timer *time.Timer
}

type Coordinator struct {
	projectID string
	self      domain.Participant
	emitter   Emitter
	signalTTL time.Duration
	idleStop  time.Duration

	mu        sync.Mutex
	remote    map[string]*entry
	localLive bool
	idleTimer *time.Timer
	closed    bool
}

func NewCoordinator(projectID string, self domain.Participant, emitter Emitter, signalTTL, idleStop time.Duration) *Coordinator {
	return &Coordinator{
		projectID: projectID,
		self:      self,
		emitter:   emitter,
		signalTTL: signalTTL,
		idleStop:  idleStop,
		remote:    make(map[string]*entry),
	}
}

// NotifyActivity reports a local keystroke. The first non-whitespace
// input after idle emits typing_start; further input pushes back the
// debounced typing_stop.
func (c *Coordinator) NotifyActivity(draft string) {
	if strings.TrimSpace(draft) == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if !c.localLive {
		c.localLive = true
		c.emitter.Emit(&domain.TypingStartEvent{
			ProjectID:  c.projectID,
			UserID:     c.self.ID,
			SenderName: c.self.DisplayName,
			SenderRole: c.self.Role,
		})
	}

	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.idleStop, c.stopLocal)
}

// NotifySend reports that the draft was sent; typing stops immediately.
func (c *Coordinator) NotifySend() {
	c.stopLocal()
}

func (c *Coordinator) stopLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.localLive || c.closed {
		return
	}
	c.localLive = false
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	c.emitter.Emit(&domain.TypingStopEvent{ProjectID: c.projectID, UserID: c.self.ID})
}

// HandleStart records a remote typing_start and arms (or refreshes) that
// user's expiry timer. Signals about the local user are ignored.
func (c *Coordinator) HandleStart(ev *domain.TypingStartEvent) {
	if ev.UserID == c.self.ID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if e, ok := c.remote[ev.UserID]; ok {
		e.state.LastSignalAt = time.Now()
		e.timer.Reset(c.signalTTL)
		return
	}

	userID := ev.UserID
	c.remote[userID] = &entry{
		state: domain.TypingState{
			UserID:       userID,
			DisplayName:  ev.SenderName,
			Role:         ev.SenderRole,
			LastSignalAt: time.Now(),
		},
		timer: time.AfterFunc(c.signalTTL, func() { c.expire(userID) }),
	}
}

// HandleStop clears a remote user's indicator immediately.
func (c *Coordinator) HandleStop(ev *domain.TypingStopEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(ev.UserID)
}

func (c *Coordinator) expire(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(userID)
}

func (c *Coordinator) removeLocked(userID string) {
	if e, ok := c.remote[userID]; ok {
		e.timer.Stop()
		delete(c.remote, userID)
	}
}

// Typing returns the counterparts currently typing, stable by user id.
// The local user is never included.
func (c *Coordinator) Typing() []domain.TypingState {
	c.mu.Lock()
	out := make([]domain.TypingState, 0, len(c.remote))
	for _, e := range c.remote {
		out = append(out, e.state)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Close stops all timers. Pending indicators are dropped, not flushed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	for id, e := range c.remote {
		e.timer.Stop()
		delete(c.remote, id)
	}
}
