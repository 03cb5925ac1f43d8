package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/store"
)

// Dead-letter reasons.
const (
	ReasonNoTarget          = "no_target_configured"
	ReasonAttemptsExhausted = "attempts_exhausted"
)

// Queue enqueues classified session results as durable delivery jobs.
// Implements the dispatcher contract expected by the agent invoker.
type Queue struct {
	store  *store.Store
	cfg    *config.DeliveryConfig
	logger *slog.Logger
}

// NewQueue wires the delivery dispatcher.
func NewQueue(st *store.Store, cfg *config.DeliveryConfig) *Queue {
	return &Queue{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "delivery-dispatcher"),
	}
}

// Dispatch builds the outbound payload and enqueues a delivery job for the
// configured target. A class with no configured target is a terminal
// condition: the payload goes straight to the dead letter and Dispatch
// returns nil, since retrying cannot make a target appear.
func (q *Queue) Dispatch(ctx context.Context, result *models.SessionResult, class models.IntentClass) error {
	payload := BuildPayload(result, class)
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery payload: %w", err)
	}

	conversationID := result.Item.ConversationID()

	target := q.cfg.TargetFor(class)
	if target == "" {
		q.logger.Warn("No delivery target configured for intent class, dead-lettering",
			"conversation_id", conversationID, "intent_class", class)
		return q.store.InsertDeadLetter(ctx, &models.DeadLetter{
			ConversationID: conversationID,
			IntentClass:    class,
			Payload:        raw,
			Reason:         ReasonNoTarget,
		})
	}

	job := &models.DeliveryJob{
		DeliveryID:     uuid.NewString(),
		ConversationID: conversationID,
		IntentClass:    class,
		TargetURL:      target,
		Payload:        raw,
		Attempt:        0,
		MaxAttempts:    q.cfg.Retry.MaxAttempts,
	}
	if err := q.store.EnqueueDeliveryJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue delivery job: %w", err)
	}

	q.logger.Info("Delivery job enqueued",
		"delivery_id", job.DeliveryID,
		"conversation_id", conversationID,
		"intent_class", class,
		"target_url", target)
	return nil
}
