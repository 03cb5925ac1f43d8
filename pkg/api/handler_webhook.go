package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/revops-ai/relay/pkg/models"
)

// estimatedProcessingTime is the delivery estimate advertised to webhook
// callers. Consumers use it to size their own timeouts; it is not a promise.
const estimatedProcessingTime = 2 * time.Minute

func newUUID() string {
	return uuid.NewString()
}

// WebhookQueryRequest is the body of POST /api/v1/query.
type WebhookQueryRequest struct {
	Query         string `json:"query"`
	SourceSystem  string `json:"source_system"`
	SourceProcess string `json:"source_process"`
	Timestamp     string `json:"timestamp"`
}

// webhookQueryHandler handles POST /api/v1/query.
// Validates the envelope, mints a correlation id, enqueues the work item,
// and acknowledges with tracking identifiers. The caller learns the outcome
// through the eventual delivery callback.
func (s *Server) webhookQueryHandler(c *echo.Context) error {
	start := s.now()

	var req WebhookQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.SourceSystem == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_system field is required")
	}
	if req.SourceProcess == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_process field is required")
	}
	if req.Timestamp == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "timestamp field is required")
	}
	if _, err := time.Parse(time.RFC3339, req.Timestamp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "timestamp must be a valid ISO-8601 instant")
	}

	correlationID := s.newID()
	item := &models.WorkItem{
		ID:    s.newID(),
		Kind:  models.KindWebhookQuery,
		Query: req.Query,
		Webhook: &models.WebhookOrigin{
			SourceSystem:  req.SourceSystem,
			SourceProcess: req.SourceProcess,
			CorrelationID: correlationID,
		},
		ReceivedAt: start,
	}

	if err := s.store.EnqueueWorkItem(c.Request().Context(), item); err != nil {
		s.logger.Error("webhook work item enqueue failed",
			"conversation_id", correlationID,
			"source_system", req.SourceSystem,
			"error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue unavailable, retry later")
	}

	queuedAt := s.now()
	s.logger.Info("webhook query enqueued",
		"item_id", item.ID,
		"conversation_id", correlationID,
		"source_system", req.SourceSystem,
		"source_process", req.SourceProcess)

	return c.JSON(http.StatusOK, &WebhookResponse{
		Success: true,
		Tracking: TrackingInfo{
			ConversationID:        correlationID,
			DeliveryID:            s.newID(),
			ProcessingTimeMS:      queuedAt.Sub(start).Milliseconds(),
			QueuedAt:              queuedAt.UTC().Format(time.RFC3339),
			EstimatedDeliveryTime: queuedAt.Add(estimatedProcessingTime).UTC().Format(time.RFC3339),
		},
		DeliveryStatus: "queued",
	})
}
