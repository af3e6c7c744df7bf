// Package notify sends match push notifications through the platform's
// notification gateway. Dispatch is fire-and-forget: failures are logged and
// never surfaced to the matching run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const apiKeyHeader = "x-api-key"

type Client struct {
	url        string
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
}

func New(url, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type matchPayload struct {
	Token1 string `json:"token1"`
	Token2 string `json:"token2"`
}

// SendMatchNotification posts both parties' device tokens to the gateway.
// When both tokens are empty there is nobody to notify and the call is a
// no-op. The returned error is informational; callers log it and move on.
func (c *Client) SendMatchNotification(ctx context.Context, token1, token2 string) error {
	if token1 == "" && token2 == "" {
		c.logger.Warn("no valid notification tokens, skipping dispatch")
		return nil
	}

	body, err := json.Marshal(matchPayload{Token1: token1, Token2: token2})
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send match notification: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway returned %s: %s", resp.Status, respBody)
	}

	c.logger.Debug("match notification sent", zap.Int("status", resp.StatusCode))
	return nil
}
