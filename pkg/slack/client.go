package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// PlaceholderText is the interim message posted at ingress and updated in
// place with progress and, finally, the response.
const PlaceholderText = ":hourglass_flowing_sand: Processing your request..."

// ApologyText replaces the placeholder when the agent fails after all retries.
const ApologyText = "Sorry, I ran into a problem answering that. Please try again in a few minutes."

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api     *goslack.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a new Slack API client.
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		api:     goslack.New(token),
		timeout: timeout,
		logger:  slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL creates a Slack API client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, apiURL string, timeout time.Duration) *Client {
	return &Client{
		api:     goslack.New(token, goslack.OptionAPIURL(apiURL)),
		timeout: timeout,
		logger:  slog.Default().With("component", "slack-client"),
	}
}

// PostPlaceholder posts the interim "processing" message as a threaded reply
// and returns its ts so later updates can rewrite it in place.
func (c *Client) PostPlaceholder(ctx context.Context, channelID, threadTS string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionText(PlaceholderText, false),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}

// UpdateMessage rewrites an existing message. Used for both progress updates
// and the final response so the thread keeps a single bot message.
func (c *Client) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts,
		goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("chat.update failed: %w", err)
	}
	return nil
}

// PostMessage posts a standalone message, optionally threaded.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionText(text, false),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
