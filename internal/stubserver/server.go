// Package stubserver is an in-memory stand-in for the workspace backend:
// the four REST endpoints plus the channel event fanout. The production
// backend is an external collaborator; this exists so the sync core can
// be developed and tested end to end, including duplicate-delivery and
// reconnect scenarios, without it.
package stubserver

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type workspaceState struct {
	project  domain.Project
	student  domain.Participant
	company  domain.Participant
	messages []domain.Message
}

// Server hosts stub workspaces.
type Server struct {
	hub      *hub
	upgrader websocket.Upgrader

	mu         sync.Mutex
	workspaces map[string]*workspaceState
}

func New() *Server {
	return &Server{
		hub:        newHub(),
		workspaces: make(map[string]*workspaceState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Seed registers a workspace. Test and dev setup call this before any
// client attaches.
func (s *Server) Seed(project domain.Project, student, company domain.Participant, history []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append([]domain.Message(nil), history...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	s.workspaces[project.ID] = &workspaceState{
		project:  project,
		student:  student,
		company:  company,
		messages: msgs,
	}
}

// SetStatus moves the stub project through its lifecycle.
func (s *Server) SetStatus(projectID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workspaces[projectID]; ok {
		ws.project.Status = status
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(middleware ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)

	r.GET("/workspace/:projectId", s.getSnapshot)
	r.GET("/workspace/:projectId/messages", s.getMessages)
	r.POST("/workspace/:projectId/messages", s.postMessage)
	r.POST("/workspace/:projectId/messages/read", s.markRead)
	r.GET("/ws", s.handleWS)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	return r
}

func (s *Server) getSnapshot(c *gin.Context) {
	projectID := c.Param("projectId")
	userID := c.GetHeader("X-User-ID")

	s.mu.Lock()
	ws, ok := s.workspaces[projectID]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "workspace not found"})
		return
	}
	recent := lastN(ws.messages, defaultLimit)
	resp := gin.H{
		"project":        ws.project,
		"student":        ws.student,
		"company":        ws.company,
		"currentUserId":  userID,
		"recentMessages": recent,
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

// getMessages pages newest-first: page 1 holds the latest messages.
// Messages within a page come back ascending by createdAt; the client
// merge does not care either way.
func (s *Server) getMessages(c *gin.Context) {
	projectID := c.Param("projectId")

	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	page := 1
	if v := c.Query("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "page must be a positive integer"})
			return
		}
		page = parsed
	}

	s.mu.Lock()
	ws, ok := s.workspaces[projectID]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "workspace not found"})
		return
	}

	total := len(ws.messages)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	// Page 1 is the newest slice of the ascending history.
	end := total - (page-1)*limit
	start := end - limit
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}
	pageMsgs := append([]domain.Message(nil), ws.messages[start:end]...)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"messages": pageMsgs,
		"pagination": domain.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			HasMore:     page < totalPages,
		},
	})
}

type postMessageRequest struct {
	Text  string              `json:"text"`
	Files []domain.Attachment `json:"files"`
}

func (s *Server) postMessage(c *gin.Context) {
	projectID := c.Param("projectId")
	userID := c.GetHeader("X-User-ID")

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body"})
		return
	}
	if err := domain.ValidateDraft(req.Text, req.Files); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}

	s.mu.Lock()
	ws, ok := s.workspaces[projectID]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "workspace not found"})
		return
	}

	sender := ws.student
	if userID == ws.company.ID {
		sender = ws.company
	}
	msg := domain.Message{
		ID:                "m-" + uuid.New().String(),
		Body:              req.Text,
		Attachments:       req.Files,
		SenderID:          sender.ID,
		SenderRole:        sender.Role,
		SenderDisplayName: sender.DisplayName,
		CreatedAt:         time.Now(),
	}
	ws.messages = append(ws.messages, msg)
	s.mu.Unlock()

	// Echo to everyone in the room, sender included: the client's
	// reconciler is expected to suppress its own echo.
	s.hub.broadcast(projectID, &domain.NewMessageEvent{Message: msg}, nil)

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (s *Server) markRead(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	go cl.writePump()
	s.readPump(cl)
}

func (s *Server) readPump(cl *client) {
	defer func() {
		if cl.projectID != "" {
			s.hub.leave(cl)
			if len(s.stillOnline(cl.projectID, cl.userID)) == 0 {
				s.hub.broadcast(cl.projectID, &domain.UserOfflineEvent{UserID: cl.userID}, nil)
			}
		}
		cl.conn.Close()
		close(cl.send)
	}()

	cl.conn.SetReadLimit(64 << 10)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPingHandler(func(appData string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return cl.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(writeWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := domain.DecodeEvent(data)
		if err != nil {
			log.L().Debug().Err(err).Msg("stub dropped undecodable frame")
			continue
		}

		switch e := ev.(type) {
		case *domain.JoinWorkspaceEvent:
			s.handleJoin(cl, e)
		case *domain.TypingStartEvent:
			s.hub.broadcast(cl.projectID, e, cl)
		case *domain.TypingStopEvent:
			s.hub.broadcast(cl.projectID, e, cl)
		}
	}
}

func (s *Server) handleJoin(cl *client, ev *domain.JoinWorkspaceEvent) {
	cl.userID = ev.UserID
	s.hub.join(cl, ev.ProjectID)

	// Tell the newcomer who is already here, then announce them.
	for _, id := range s.hub.online(ev.ProjectID) {
		if id == ev.UserID {
			continue
		}
		data, err := domain.EncodeEvent(&domain.UserOnlineEvent{UserID: id})
		if err == nil {
			select {
			case cl.send <- data:
			default:
			}
		}
	}
	s.hub.broadcast(ev.ProjectID, &domain.UserOnlineEvent{UserID: ev.UserID}, cl)
}

func (s *Server) stillOnline(projectID, userID string) []string {
	var out []string
	for _, id := range s.hub.online(projectID) {
		if id == userID {
			out = append(out, id)
		}
	}
	return out
}

func lastN(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return append([]domain.Message(nil), msgs...)
	}
	return append([]domain.Message(nil), msgs[len(msgs)-n:]...)
}
