package stubserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongWait         = 60 * time.Second
)

// client is one connected workspace participant.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	projectID string
}

// hub fans channel events out to every participant of a workspace room.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) join(c *client, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[projectID]; !ok {
		h.rooms[projectID] = make(map[*client]struct{})
	}
	h.rooms[projectID][c] = struct{}{}
	c.projectID = projectID
	log.L().Debug().Str(log.FieldProjectID, projectID).Str(log.FieldUserID, c.userID).Msg("client joined room")
}

func (h *hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.projectID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.projectID)
		}
	}
}

// online lists distinct users currently in a room.
func (h *hub) online(projectID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for c := range h.rooms[projectID] {
		if _, ok := seen[c.userID]; !ok {
			seen[c.userID] = struct{}{}
			out = append(out, c.userID)
		}
	}
	return out
}

// broadcast sends an event to every client in the room except the one
// named by exclude (empty means everyone).
func (h *hub) broadcast(projectID string, ev domain.Event, exclude *client) {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, ev.EventType()).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[projectID] {
		if c == exclude {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer; the stub just drops the frame.
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
