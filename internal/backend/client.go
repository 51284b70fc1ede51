package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/models"
)

const defaultTimeout = 15 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the RecruAI REST backend on behalf of one authenticated user.
type Client struct {
	baseURL string
	token   string
	client  httpDoer
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default timeout-bound http.Client.
func WithHTTPClient(doer httpDoer) Option {
	return func(c *Client) { c.client = doer }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			d = defaultTimeout
		}
		c.client = &http.Client{Timeout: d}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with the given bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

func (c *Client) Interview(ctx context.Context, id models.ID) (*models.Interview, error) {
	var interview models.Interview
	if err := c.do(ctx, http.MethodGet, "/interviews/"+url.PathEscape(id.String()), nil, &interview); err != nil {
		return nil, fmt.Errorf("get interview %s: %w", id, err)
	}
	return &interview, nil
}

// Messages returns the full message list of an interview in backend order.
func (c *Client) Messages(ctx context.Context, interviewID models.ID) ([]models.Message, error) {
	var raw json.RawMessage
	path := "/interviews/" + url.PathEscape(interviewID.String()) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", interviewID, err)
	}

	messages, err := decodeMessageList(raw)
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", interviewID, err)
	}
	return messages, nil
}

func (c *Client) PostMessage(ctx context.Context, interviewID models.ID, msg models.NewMessage) (*models.Message, error) {
	var created models.Message
	path := "/interviews/" + url.PathEscape(interviewID.String()) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, msg, &created); err != nil {
		return nil, fmt.Errorf("post message to %s: %w", interviewID, err)
	}
	return &created, nil
}

type replyResponse struct {
	Response string `json:"response"`
}

// GenerateReply asks the backend's auto-responder for a reply to req.Message.
func (c *Client) GenerateReply(ctx context.Context, req models.ReplyRequest) (string, error) {
	var resp replyResponse
	if err := c.do(ctx, http.MethodPost, "/ai/interview-response", req, &resp); err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply := strings.TrimSpace(resp.Response)
	if reply == "" {
		return "", fmt.Errorf("generate reply: empty response")
	}
	return reply, nil
}

// decodeMessageList accepts either a bare array or a {"messages": [...]} / {"data": [...]} wrapper.
func decodeMessageList(raw json.RawMessage) ([]models.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Message{}, nil
	}

	if trimmed[0] == '[' {
		var list []models.Message
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Messages []models.Message `json:"messages"`
		Data     []models.Message `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if wrapped.Messages != nil {
		return wrapped.Messages, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []models.Message{}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return buildAPIError(response.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
