// Package assistant is the HTTP client for the conversational-agent
// service. The core treats threads as opaque identifiers.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/formcoach/server/pkg/faults"
	httputil "github.com/formcoach/server/pkg/infrastructure/http"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type createThreadRequest struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title,omitempty"`
}

type createThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// CreateThread opens a new agent thread and returns its identifier.
func (c *Client) CreateThread(ctx context.Context, ownerID, title string) (string, error) {
	var out createThreadResponse
	err := c.post(ctx, "/v1/threads", createThreadRequest{OwnerID: ownerID, Title: title}, &out)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if out.ThreadID == "" {
		return "", fmt.Errorf("create thread: empty thread_id in response")
	}
	return out.ThreadID, nil
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Reply string `json:"reply"`
}

// SendMessage posts a user message to the thread and returns the agent's
// reply.
func (c *Client) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	var out sendMessageResponse
	path := fmt.Sprintf("/v1/threads/%s/messages", threadID)
	if err := c.post(ctx, path, sendMessageRequest{Content: content}, &out); err != nil {
		return "", fmt.Errorf("send message to thread %s: %w", threadID, err)
	}
	return out.Reply, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return faults.Transient("assistant", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return faults.Transient("assistant", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
