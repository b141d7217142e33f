package domain

import (
	"encoding/json"
	"fmt"
)

// Channel event types consumed from the backend.
const (
	EventNewMessage  = "new_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventUserOnline  = "user_online"
	EventUserOffline = "user_offline"
)

// Channel event types emitted to the backend.
const (
	EventJoinWorkspace = "join_workspace"
)

// Event is the closed set of channel frames. Each wire type has exactly
// one concrete struct so dispatch is an exhaustive type switch, not a
// string-keyed handler map.
type Event interface {
	EventType() string
}

// Inbound events.

type NewMessageEvent struct {
	Message Message `json:"message"`
}

func (NewMessageEvent) EventType() string { return EventNewMessage }

type TypingStartEvent struct {
	ProjectID  string `json:"projectId"`
	UserID     string `json:"userId"`
	SenderName string `json:"senderName"`
	SenderRole Role   `json:"senderRole"`
}

func (TypingStartEvent) EventType() string { return EventTypingStart }

type TypingStopEvent struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

func (TypingStopEvent) EventType() string { return EventTypingStop }

type UserOnlineEvent struct {
	UserID string `json:"userId"`
}

func (UserOnlineEvent) EventType() string { return EventUserOnline }

type UserOfflineEvent struct {
	UserID string `json:"userId"`
}

func (UserOfflineEvent) EventType() string { return EventUserOffline }

// Outbound events.

type JoinWorkspaceEvent struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

func (JoinWorkspaceEvent) EventType() string { return EventJoinWorkspace }

// frame is the envelope every channel message travels in.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent wraps an event in its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Type: ev.EventType(), Payload: payload})
}

// DecodeEvent parses a wire frame into its concrete event type.
// Unknown types return an error so callers can log and drop them.
func DecodeEvent(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}

	var ev Event
	switch f.Type {
	case EventNewMessage:
		ev = &NewMessageEvent{}
	case EventTypingStart:
		ev = &TypingStartEvent{}
	case EventTypingStop:
		ev = &TypingStopEvent{}
	case EventUserOnline:
		ev = &UserOnlineEvent{}
	case EventUserOffline:
		ev = &UserOfflineEvent{}
	case EventJoinWorkspace:
		ev = &JoinWorkspaceEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %q", f.Type)
	}

	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", f.Type, err)
		}
	}
	return ev, nil
}
