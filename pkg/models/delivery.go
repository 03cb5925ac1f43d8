package models

import (
	"encoding/json"
	"time"
)

// DeliveryStatus is the lifecycle state of a delivery job. Terminal statuses
// (delivered, failed_permanent) are write-once.
type DeliveryStatus string

// Delivery statuses.
const (
	DeliveryPending         DeliveryStatus = "pending"
	DeliveryDelivered       DeliveryStatus = "delivered"
	DeliveryRetryScheduled  DeliveryStatus = "retry_scheduled"
	DeliveryFailedPermanent DeliveryStatus = "failed_permanent"
)

// Terminal reports whether the status permits no further transitions.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailedPermanent
}

// DeliveryMetadata is the metadata block of the outbound payload.
type DeliveryMetadata struct {
	TrackingID       string `json:"tracking_id"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	Timestamp        string `json:"timestamp"`
	SourceSystem     string `json:"source_system"`
	SourceProcess    string `json:"source_process"`
}

// DeliveryPayload is the JSON document posted to the downstream endpoint.
// Metadata.TrackingID carries the conversation id; the delivery id rides in
// the X-Delivery-Id request header so consumers can recognize duplicates
// under at-least-once delivery.
type DeliveryPayload struct {
	Header        string           `json:"header"`
	ResponseRich  string           `json:"response_rich"`
	ResponsePlain string           `json:"response_plain"`
	AgentsUsed    []string         `json:"agents_used"`
	Metadata      DeliveryMetadata `json:"metadata"`
}

// DeadLetter records a delivery that will never be attempted again, either
// because attempts were exhausted or no target endpoint was configured.
type DeadLetter struct {
	ID             string
	DeliveryID     string
	ConversationID string
	IntentClass    IntentClass
	TargetURL      string
	Payload        json.RawMessage
	Reason         string
	Attempts       int
	CreatedAt      time.Time
}

// DeliveryJob is the unit managed by the delivery engine. Attempt never
// exceeds MaxAttempts; NextReadyAt gates when a retry becomes claimable.
type DeliveryJob struct {
	DeliveryID     string
	ConversationID string
	IntentClass    IntentClass
	TargetURL      string
	Payload        json.RawMessage
	Attempt        int
	MaxAttempts    int
	NextReadyAt    time.Time
	Status         DeliveryStatus
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
