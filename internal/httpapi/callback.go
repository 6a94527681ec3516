package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const callbackTimeout = 10 * time.Second

// CallbackPayload is POSTed to an action's callback_url when it is invoked.
type CallbackPayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CallbackClient delivers action callbacks in the background.
type CallbackClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewCallbackClient creates a CallbackClient.
func NewCallbackClient(logger *slog.Logger) *CallbackClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackClient{
		httpClient: &http.Client{Timeout: callbackTimeout},
		logger:     logger,
	}
}

// Send posts payload to url without blocking the caller.
func (c *CallbackClient) Send(url string, payload CallbackPayload) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Post(context.Background(), url, payload); err != nil {
			c.logger.Warn("action callback failed", "url", url, "request_id", payload.ID, "error", err)
		}
	}()
}

// Post delivers payload synchronously.
func (c *CallbackClient) Post(ctx context.Context, url string, payload CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, string(respBody))
	}
	c.logger.Debug("action callback delivered", "url", url, "request_id", payload.ID, "label", payload.Label)
	return nil
}

// Wait blocks until in-flight callbacks finish.
func (c *CallbackClient) Wait() {
	c.wg.Wait()
}
