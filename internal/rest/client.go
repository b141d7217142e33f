// Package rest is the client for the workspace backend's HTTP surface:
// snapshot, paginated backfill, send, and mark-read. The backend itself
// is an external collaborator; only the shapes below are consumed.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kmrathod29/seribro-sub002/internal/config"
	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

// APIError is a non-2xx response from the backend. It is an expected
// failure mode; callers surface it, they do not panic on it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Snapshot is the initial workspace state.
type Snapshot struct {
	Project        domain.Project     `json:"project"`
	Student        domain.Participant `json:"student"`
	Company        domain.Participant `json:"company"`
	CurrentUserID  string             `json:"currentUserId"`
	RecentMessages []domain.Message   `json:"recentMessages"`
}

// MessagePage is one page of message history.
type MessagePage struct {
	Messages   []domain.Message  `json:"messages"`
	Pagination domain.Pagination `json:"pagination"`
}

type sendRequest struct {
	Text  string              `json:"text"`
	Files []domain.Attachment `json:"files"`
}

type sendResponse struct {
	Message domain.Message `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Client talks to the workspace REST endpoints. Overlapping page fetches
// for the same page (poller tick racing a load-more) collapse into one
// request through singleflight. The http.Client carries no global
// timeout: each operation is raced against exactly its own deadline
// (SendTimeout for sends, ReadTimeout for mark-read, RequestTimeout for
// snapshot and backfill), so a short general timeout can never cut a
// longer send window off.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     config.APIConfig
	sf      singleflight.Group
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		cfg:     cfg,
		http:    &http.Client{},
	}
}

// GetSnapshot loads the initial workspace state.
func (c *Client) GetSnapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var snap Snapshot
	endpoint := fmt.Sprintf("%s/workspace/%s", c.baseURL, url.PathEscape(projectID))
	if err := c.getJSON(ctx, endpoint, &snap); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

// GetMessages fetches one page of message history. Page 1 is the most
// recent page.
func (c *Client) GetMessages(ctx context.Context, projectID string, page int) (*MessagePage, error) {
	key := fmt.Sprintf("%s:%d", projectID, page)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		endpoint := fmt.Sprintf("%s/workspace/%s/messages?page=%d&limit=%d",
			c.baseURL, url.PathEscape(projectID), page, c.cfg.PageLimit)
		var mp MessagePage
		if err := c.getJSON(ctx, endpoint, &mp); err != nil {
			return nil, err
		}
		return &mp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get messages page %d: %w", page, err)
	}
	return result.(*MessagePage), nil
}

// SendMessage posts a new message and returns the server-confirmed copy,
// bounded by the configured send timeout.
func (c *Client) SendMessage(ctx context.Context, projectID, text string, files []domain.Attachment) (domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/workspace/%s/messages", c.baseURL, url.PathEscape(projectID))
	body, err := json.Marshal(sendRequest{Text: text, Files: files})
	if err != nil {
		return domain.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sendResponse
	if err := c.doJSON(req, &resp); err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	return resp.Message, nil
}

// MarkRead tells the backend the current user has seen the board. It is
// fire-and-forget: failures are logged, never propagated as fatal.
func (c *Client) MarkRead(ctx context.Context, projectID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/workspace/%s/messages/read", c.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	if err := c.doJSON(req, nil); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldProjectID, projectID).Msg("mark read failed")
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// HeaderUserID carries the caller's opaque identity. Session handling is
// owned by the surrounding application; this client only forwards it.
const HeaderUserID = "X-User-ID"

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	if c.cfg.UserID != "" {
		req.Header.Set(HeaderUserID, c.cfg.UserID)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	log.Ctx(req.Context()).Debug().
		Str(log.FieldMethod, req.Method).
		Str(log.FieldPath, req.URL.Path).
		Int(log.FieldStatus, resp.StatusCode).
		Float64(log.FieldLatency, float64(time.Since(start).Milliseconds())).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
