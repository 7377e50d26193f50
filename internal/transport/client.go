package transport

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

	"wellness-chat/pkg"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s: status %d: %s", e.Op, e.Code, e.Message)
}

// Client speaks the JSON API served by internal/http.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error) {
	var payload pkg.SessionPayload
	if err := c.do(ctx, "get session", http.MethodGet, sessionPath(id), nil, &payload); err != nil {
		return nil, err
	}
	if payload.Messages == nil {
		payload.Messages = []pkg.Message{}
	}
	return payload.Messages, nil
}

func (c *Client) SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error {
	return c.do(ctx, "save session", http.MethodPut, sessionPath(id), pkg.SessionPayload{Messages: messages}, nil)
}

func (c *Client) SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error {
	return c.do(ctx, "save message", http.MethodPost, sessionPath(id)+"/messages", m, nil)
}

func (c *Client) EndSession(ctx context.Context, id pkg.SessionID) error {
	return c.do(ctx, "end session", http.MethodDelete, sessionPath(id), nil, nil)
}

func (c *Client) Complete(ctx context.Context, prompt string, history []pkg.Turn) (string, error) {
	var resp pkg.CompletionResponse
	req := pkg.CompletionRequest{Prompt: prompt, History: history}
	if err := c.do(ctx, "complete", http.MethodPost, "/api/completions", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func sessionPath(id pkg.SessionID) string {
	return "/api/sessions/" + url.PathEscape(string(id))
}

// do performs one request.  in is JSON-encoded when non-nil; out is decoded
// from a 2xx body when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("transport: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e pkg.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Op: op, Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: %s: decode: %w", op, err)
	}
	return nil
}
