// Package models defines the shared domain types flowing through the pipeline:
// work items, trace events, conversation records, and delivery jobs.
package models

import "time"

// WorkItemKind identifies the ingress origin of a work item.
type WorkItemKind string

// Work item kinds.
const (
	KindChatMention  WorkItemKind = "chat_mention"
	KindWebhookQuery WorkItemKind = "webhook_query"
)

// WorkItemStatus is the queue lifecycle state of a work item.
type WorkItemStatus string

// Work item statuses.
const (
	WorkItemPending    WorkItemStatus = "pending"
	WorkItemInProgress WorkItemStatus = "in_progress"
	WorkItemCompleted  WorkItemStatus = "completed"
	WorkItemFailed     WorkItemStatus = "failed"
)

// ChatOrigin addresses the reply sink for a chat-originated work item.
type ChatOrigin struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	// ThreadTS is the thread the reply belongs to. For mentions outside a
	// thread this is the mention's own ts, so the reply opens a new thread.
	ThreadTS string `json:"thread_ts"`
	// EventTS is the ts of the triggering mention message.
	EventTS string `json:"event_ts"`
	// PlaceholderTS is the ts of the "processing..." message posted at
	// ingress; the final response updates this message in place.
	PlaceholderTS string `json:"placeholder_ts"`
}

// WebhookOrigin identifies the upstream business system behind a webhook query.
type WebhookOrigin struct {
	SourceSystem  string `json:"source_system"`
	SourceProcess string `json:"source_process"`
	// CorrelationID is minted at ingress and doubles as the conversation id
	// returned to the caller for tracking.
	CorrelationID string `json:"correlation_id"`
}

// WorkItem is the unit of asynchronous work created at ingress and consumed
// by the agent invoker. Query and origin are immutable after enqueue.
type WorkItem struct {
	ID     string       `json:"id"`
	Kind   WorkItemKind `json:"kind"`
	Query  string       `json:"query"`
	Status WorkItemStatus

	// Exactly one of Chat / Webhook is set, matching Kind.
	Chat    *ChatOrigin    `json:"chat,omitempty"`
	Webhook *WebhookOrigin `json:"webhook,omitempty"`

	ReceivedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	PodID       string
	Error       string
}

// ConversationID returns the stable identifier used for record export and
// delivery tracking: the webhook correlation id when present, otherwise the
// work item id.
func (w *WorkItem) ConversationID() string {
	if w.Webhook != nil && w.Webhook.CorrelationID != "" {
		return w.Webhook.CorrelationID
	}
	return w.ID
}

// Channel returns a short label for the ingress channel, used in record
// metadata and logging.
func (w *WorkItem) Channel() string {
	if w.Kind == KindChatMention {
		return "slack"
	}
	return "webhook"
}
