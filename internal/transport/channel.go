// Package transport owns the one persistent duplex connection a
// workspace session holds to the backend. It dials, keeps the socket
// alive, reconnects with bounded exponential backoff, and re-issues the
// workspace join on every (re)connect, since room membership does not
// survive a reconnect. It emits decoded events upward and never
// touches the message store itself.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kmrathod29/seribro-sub002/internal/config"
	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

// EventHandler receives every decoded inbound event.
type EventHandler func(ev domain.Event)

// StateHandler receives connectivity transitions. connected=false fires
// on every drop, including the final one when retries are exhausted.
type StateHandler func(connected bool)

// Channel is a single workspace connection. One instance exists per
// mounted session; Connect is idempotent so reconnect logic and initial
// connection logic cannot race each other into two live sockets.
type Channel struct {
	cfg     config.ChannelConfig
	dialer  *websocket.Dialer
	onEvent EventHandler
	onState StateHandler

	mu       sync.Mutex
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	identity *domain.JoinWorkspaceEvent
	started  bool

	closed    chan struct{}
	closeOnce sync.Once
}

func NewChannel(cfg config.ChannelConfig, onEvent EventHandler, onState StateHandler) *Channel {
	return &Channel{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onEvent: onEvent,
		onState: onState,
		closed:  make(chan struct{}),
	}
}

// JoinRoom records the identity to join with. If the identity arrives
// after Connect, the join is issued as soon as a connection is live;
// it is also re-issued on every reconnect.
func (c *Channel) JoinRoom(projectID, userID string) {
	c.mu.Lock()
	c.identity = &domain.JoinWorkspaceEvent{ProjectID: projectID, UserID: userID}
	connected := c.conn != nil
	c.mu.Unlock()

	if connected {
		c.Emit(&domain.JoinWorkspaceEvent{ProjectID: projectID, UserID: userID})
	}
}

// Connect starts the connection loop. Calling it again while the loop is
// live is a no-op.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	attempt := 0
	backoff := c.cfg.BackoffInitial

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		default:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempt++
			if attempt >= c.cfg.MaxReconnects {
				log.Ctx(ctx).Error().Err(err).
					Int(log.FieldAttempt, attempt).
					Msg("channel retries exhausted, falling back to polling only")
				return
			}
			log.Ctx(ctx).Warn().Err(err).
				Int(log.FieldAttempt, attempt).
				Int64(log.FieldBackoff, backoff.Milliseconds()).
				Msg("channel dial failed, backing off")
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.cfg.BackoffCap)
			continue
		}

		attempt = 0
		backoff = c.cfg.BackoffInitial

		c.attach(conn)
		c.onState(true)
		c.joinIfIdentified()

		c.readLoop(conn)

		c.detach(conn)
		c.onState(false)
	}
}

func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, 64)
	c.done = make(chan struct{})
	send, done := c.send, c.done
	c.mu.Unlock()

	go c.writePump(conn, send, done)
}

// detach signals the write pump through the per-connection done channel
// rather than closing send, so a concurrent Emit can never hit a closed
// channel.
func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		close(c.done)
		c.conn = nil
		c.send = nil
		c.done = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) joinIfIdentified() {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	if identity != nil {
		c.Emit(identity)
		log.L().Info().
			Str(log.FieldProjectID, identity.ProjectID).
			Str(log.FieldUserID, identity.UserID).
			Msg("joined workspace room")
	}
}

// Emit sends an event over the live connection. Emission is best-effort:
// while disconnected the event is dropped. Typing signals are ephemeral
// and the join is replayed by the reconnect path.
func (c *Channel) Emit(ev domain.Event) {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, ev.EventType()).Msg("encode event")
		return
	}

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return
	}

	select {
	case send <- data:
	default:
		log.L().Debug().Str(log.FieldEvent, ev.EventType()).Msg("send buffer full, event dropped")
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.L().Warn().Err(err).Msg("channel read error")
			}
			return
		}

		ev, err := domain.DecodeEvent(data)
		if err != nil {
			log.L().Debug().Err(err).Msg("dropped undecodable frame")
			continue
		}
		c.onEvent(ev)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.closed:
			return
		}
	}
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	case <-t.C:
		return true
	}
}

// Close tears the channel down for good. Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}
