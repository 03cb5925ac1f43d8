package api

// WebhookResponse is returned by POST /api/v1/query.
type WebhookResponse struct {
	Success        bool         `json:"success"`
	Tracking       TrackingInfo `json:"tracking"`
	DeliveryStatus string       `json:"delivery_status"`
}

// TrackingInfo carries the identifiers a webhook caller needs to correlate
// the eventual delivery callback with its request.
type TrackingInfo struct {
	ConversationID        string `json:"conversation_id"`
	DeliveryID            string `json:"delivery_id"`
	ProcessingTimeMS      int64  `json:"processing_time_ms"`
	QueuedAt              string `json:"queued_at"`
	EstimatedDeliveryTime string `json:"estimated_delivery_time"`
}

// SlackAckResponse acknowledges a chat-platform event delivery.
type SlackAckResponse struct {
	OK bool `json:"ok"`
}

// ChallengeResponse answers the chat platform's URL verification handshake.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// CancelResponse is returned by POST /api/v1/items/:id/cancel.
type CancelResponse struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the status of one checked component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
