// Package delivery posts classified responses to downstream endpoints with
// exponential-backoff retry and dead-letter terminal handling. Dispatch
// enqueues durable delivery jobs; the Engine consumes and resolves them.
package delivery

import (
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// Fixed identity stamped into every outbound payload so consumers can
// recognize the sender regardless of which business system originated the
// query.
const (
	payloadSourceSystem  = "revops_ai_framework"
	payloadSourceProcess = "webhook_gateway"
)

// BuildPayload assembles the outbound delivery document from a finished
// session. The header carries the intent class; the response is included
// both as-is and with markdown stripped for plain-text consumers.
func BuildPayload(result *models.SessionResult, class models.IntentClass) *models.DeliveryPayload {
	agents := result.AgentsUsed()
	if agents == nil {
		agents = []string{}
	}
	return &models.DeliveryPayload{
		Header:        string(class),
		ResponseRich:  result.FinalResponse,
		ResponsePlain: StripMarkdown(result.FinalResponse),
		AgentsUsed:    agents,
		Metadata: models.DeliveryMetadata{
			TrackingID:       result.Item.ConversationID(),
			ProcessingTimeMS: result.ProcessingTime().Milliseconds(),
			Timestamp:        result.CompletedAt.UTC().Format(time.RFC3339),
			SourceSystem:     payloadSourceSystem,
			SourceProcess:    payloadSourceProcess,
		},
	}
}
