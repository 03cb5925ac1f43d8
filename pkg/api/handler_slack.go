package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/slack"
)

// slackEnvelope is the outer event envelope posted by the chat platform.
type slackEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type     string `json:"type"`
		User     string `json:"user"`
		Channel  string `json:"channel"`
		Text     string `json:"text"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
	} `json:"event"`
}

// slackEventsHandler handles POST /slack/events.
// The platform retries on non-200 responses, so every accepted event path
// returns 200 even when downstream enqueue fails; only signature failures
// and unreadable bodies are rejected.
func (s *Server) slackEventsHandler(c *echo.Context) error {
	// Signature verification needs the exact wire bytes, before any decoding.
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if err := s.verifier.Verify(c.Request().Header, body); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "signature verification failed")
	}

	var envelope slackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event envelope")
	}

	switch envelope.Type {
	case "url_verification":
		return c.JSON(http.StatusOK, &ChallengeResponse{Challenge: envelope.Challenge})
	case "event_callback":
		if envelope.Event.Type == "app_mention" {
			s.handleMention(c, &envelope)
		}
		return c.JSON(http.StatusOK, &SlackAckResponse{OK: true})
	default:
		return c.JSON(http.StatusOK, &SlackAckResponse{OK: true})
	}
}

func (s *Server) handleMention(c *echo.Context, envelope *slackEnvelope) {
	ctx := c.Request().Context()
	event := envelope.Event

	// The platform redelivers events it considers unacknowledged; a key that
	// was already recorded inside the window is a duplicate, not new work.
	eventKey := slack.EventKey(event.Channel, event.TS)
	fresh, err := s.store.MarkEventProcessed(ctx, eventKey, s.slackCfg.DedupWindow)
	if err != nil {
		s.logger.Error("event dedup check failed, processing anyway",
			"event_key", eventKey, "error", err)
	} else if !fresh {
		s.logger.Debug("duplicate event ignored", "event_key", eventKey)
		return
	}

	// A bare mention leaves nothing to answer once the bot tag is removed.
	query := slack.StripMention(event.Text)
	if strings.TrimSpace(query) == "" {
		s.logger.Debug("mention without a query ignored",
			"channel", event.Channel, "user", event.User)
		return
	}

	threadTS := slack.ThreadTS(event.ThreadTS, event.TS)

	var placeholderTS string
	if s.chat != nil {
		placeholderTS, err = s.chat.PostPlaceholder(ctx, event.Channel, threadTS)
		if err != nil {
			s.logger.Error("failed to post placeholder message",
				"channel", event.Channel, "error", err)
		}
	}

	item := &models.WorkItem{
		ID:    s.newID(),
		Kind:  models.KindChatMention,
		Query: query,
		Chat: &models.ChatOrigin{
			ChannelID:     event.Channel,
			UserID:        event.User,
			ThreadTS:      threadTS,
			EventTS:       event.TS,
			PlaceholderTS: placeholderTS,
		},
		ReceivedAt: s.now(),
	}

	if err := s.store.EnqueueWorkItem(ctx, item); err != nil {
		// Returning an error here would trigger a platform retry storm, so
		// the failure is surfaced operationally instead.
		s.logger.Error("ALERT: chat work item enqueue failed, mention dropped",
			"item_id", item.ID,
			"channel", event.Channel,
			"error", err)
		return
	}

	s.logger.Info("chat mention enqueued",
		"item_id", item.ID,
		"channel", event.Channel,
		"user", event.User)
}
