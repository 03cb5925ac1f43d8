package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/revops-ai/relay/pkg/models"
)

func TestBuildPayload(t *testing.T) {
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	result := &models.SessionResult{
		Item: &models.WorkItem{
			ID:   "item-1",
			Kind: models.KindWebhookQuery,
			Webhook: &models.WebhookOrigin{
				SourceSystem:  "salesforce",
				SourceProcess: "deal_review",
				CorrelationID: "corr-9",
			},
		},
		FinalResponse: "**Strong deal.** See [the report](https://x/report).",
		TraceEvents: []*models.TraceEvent{
			{Type: models.TraceRationale, AgentName: "Supervisor"},
			{Type: models.TraceCollaboratorInvoke, AgentName: "Supervisor", Collaborator: "DealAgent"},
			{Type: models.TraceCollaboratorOutput, AgentName: "Supervisor", Collaborator: "DealAgent"},
		},
		Success:     true,
		StartedAt:   started,
		CompletedAt: started.Add(2500 * time.Millisecond),
	}

	p := BuildPayload(result, models.IntentDealAnalysis)

	assert.Equal(t, "deal_analysis", p.Header)
	assert.Equal(t, "**Strong deal.** See [the report](https://x/report).", p.ResponseRich)
	assert.Equal(t, "Strong deal. See the report.", p.ResponsePlain)
	assert.Equal(t, []string{"Supervisor", "DealAgent"}, p.AgentsUsed)

	assert.Equal(t, "corr-9", p.Metadata.TrackingID)
	assert.Equal(t, int64(2500), p.Metadata.ProcessingTimeMS)
	assert.Equal(t, "2026-08-25T10:00:02Z", p.Metadata.Timestamp)
	assert.Equal(t, "revops_ai_framework", p.Metadata.SourceSystem)
	assert.Equal(t, "webhook_gateway", p.Metadata.SourceProcess)
}

func TestBuildPayloadEmptyTrace(t *testing.T) {
	result := &models.SessionResult{
		Item:          &models.WorkItem{ID: "item-2"},
		FinalResponse: "plain answer",
	}

	p := BuildPayload(result, models.IntentGeneral)

	assert.Equal(t, "general", p.Header)
	// Marshals as [] rather than null.
	assert.NotNil(t, p.AgentsUsed)
	assert.Empty(t, p.AgentsUsed)
	assert.Equal(t, "item-2", p.Metadata.TrackingID)
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text untouched", "just a sentence.", "just a sentence."},
		{"bold", "**important** point", "important point"},
		{"underscore bold", "__important__ point", "important point"},
		{"italic", "an *emphasized* word", "an emphasized word"},
		{"inline code", "run `select 1` now", "run select 1 now"},
		{"link keeps text", "see [the dashboard](https://example.com/d)", "see the dashboard"},
		{"heading", "## Summary\ndetails", "Summary\ndetails"},
		{"blockquote", "> quoted line", "quoted line"},
		{"bullets", "- first\n- second", "first\nsecond"},
		{
			"code fence markers removed",
			"```sql\nselect 1\n```\ndone",
			"select 1\ndone",
		},
		{"horizontal rule", "above\n---\nbelow", "above\nbelow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.in))
		})
	}
}
