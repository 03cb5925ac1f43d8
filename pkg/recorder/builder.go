package recorder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// fallbackQueryConfidence marks user queries reconstructed from metadata
// rather than carried on the work item.
const fallbackQueryConfidence = 0.3

// BuildRecord assembles the canonical conversation record from a finished
// session. The record is complete and self-contained; export serializes it
// without further computation.
func BuildRecord(result *models.SessionResult) *models.ConversationRecord {
	item := result.Item

	record := &models.ConversationRecord{
		ConversationID: item.ConversationID(),
		SessionID:      result.SessionKey,
		Channel:        item.Channel(),
		SourceSystem:   sourceSystem(item),
		StartedAt:      result.StartedAt,
		EndedAt:        result.CompletedAt,
		DurationMS:     result.ProcessingTime().Milliseconds(),
		FinalResponse:  result.FinalResponse,
		Success:        result.Success,
		ErrorMessage:   result.ErrorMessage,
	}
	record.UserQuery, record.UserQueryConfidence = extractUserQuery(item)

	steps, fingerprints := buildAgentFlow(result.TraceEvents)
	record.AgentFlow = steps
	if len(fingerprints) > 0 {
		record.SystemPromptFingerprints = fingerprints
	}
	record.CollaborationMap = buildCollaborationMap(result.TraceEvents)
	fillCollaborationReceived(record.AgentFlow, record.CollaborationMap)

	for _, step := range record.AgentFlow {
		record.FunctionAudit.ToolExecutions += len(step.ToolsUsed)
		record.FunctionAudit.DataOperations += step.DataOperations
	}

	record.Quality = computeQuality(record, result.TraceEvents)

	record.TraceEvents = make([]models.TraceEvent, 0, len(result.TraceEvents))
	for _, ev := range result.TraceEvents {
		record.TraceEvents = append(record.TraceEvents, *ev)
	}

	return record
}

// extractUserQuery returns the standardized user query and a confidence.
// The query on the work item is authoritative; when it is missing a
// low-confidence fallback is constructed from origin metadata.
func extractUserQuery(item *models.WorkItem) (string, float64) {
	if q := strings.TrimSpace(item.Query); q != "" {
		return whitespaceRun.ReplaceAllString(q, " "), 1.0
	}
	if item.Webhook != nil {
		return fmt.Sprintf("query unavailable (source %s/%s)",
			item.Webhook.SourceSystem, item.Webhook.SourceProcess), fallbackQueryConfidence
	}
	if item.Chat != nil {
		return fmt.Sprintf("query unavailable (channel %s)", item.Chat.ChannelID), fallbackQueryConfidence
	}
	return "query unavailable", fallbackQueryConfidence
}

func sourceSystem(item *models.WorkItem) string {
	if item.Webhook != nil && item.Webhook.SourceSystem != "" {
		return item.Webhook.SourceSystem
	}
	return item.Channel()
}

// stepAccumulator collects the events of one agent step during grouping.
type stepAccumulator struct {
	agent      string
	confidence float64
	events     []*models.TraceEvent
	started    time.Time
	ended      time.Time
}

// buildAgentFlow groups trace events into per-agent steps and resolves each
// step's reasoning breakdown and prompt fingerprint. Chunk events carry
// response text, not agent activity, and are skipped.
func buildAgentFlow(events []*models.TraceEvent) ([]models.AgentStep, map[string]string) {
	var accs []*stepAccumulator
	var current *stepAccumulator
	prev := attribution{}

	for _, ev := range events {
		if ev.Type == models.TraceChunk {
			continue
		}
		att := attribute(ev, prev)
		prev = att

		if current == nil || current.agent != att.Agent {
			current = &stepAccumulator{
				agent:      att.Agent,
				confidence: att.Confidence,
				started:    ev.Timestamp,
			}
			accs = append(accs, current)
		} else if att.Confidence > current.confidence {
			current.confidence = att.Confidence
		}
		current.events = append(current.events, ev)
		current.ended = ev.Timestamp
	}

	fingerprints := make(map[string]string)
	steps := make([]models.AgentStep, 0, len(accs))
	for _, acc := range accs {
		steps = append(steps, buildStep(acc, fingerprints))
	}
	return steps, fingerprints
}

func buildStep(acc *stepAccumulator, fingerprints map[string]string) models.AgentStep {
	step := models.AgentStep{
		AgentName:             acc.agent,
		AttributionConfidence: acc.confidence,
		LowConfidence:         acc.confidence < lowConfidenceThreshold,
		StartedAt:             acc.started,
		EndedAt:               acc.ended,
	}

	var reasoning strings.Builder
	for _, ev := range acc.events {
		switch ev.Type {
		case models.TraceModelInput:
			// First model input in a step is the system prompt body; it is
			// stored once in the record map and referenced by fingerprint.
			if step.PromptFingerprint == "" && ev.Text != "" {
				fp := Fingerprint(ev.Text)
				if _, ok := fingerprints[fp]; !ok {
					fingerprints[fp] = ev.Text
				}
				step.PromptFingerprint = fp
			}
			reasoning.WriteString(ev.Text)
			reasoning.WriteString("\n")
		case models.TraceRationale:
			reasoning.WriteString(ev.Text)
			reasoning.WriteString("\n")
		case models.TraceCollaboratorInvoke:
			if ev.Collaborator != "" && !contains(step.CollaborationSent, ev.Collaborator) {
				step.CollaborationSent = append(step.CollaborationSent, ev.Collaborator)
			}
		}
	}

	step.Reasoning = *ParseReasoning(reasoning.String())
	step.ToolsUsed = pairToolEvents(acc.events)
	step.DataOperations = countDataOperations(step.ToolsUsed)
	return step
}

// buildCollaborationMap aggregates directed agent-to-agent invocations.
func buildCollaborationMap(events []*models.TraceEvent) []models.CollaborationEdge {
	counts := make(map[[2]string]int)
	prev := attribution{}
	for _, ev := range events {
		if ev.Type == models.TraceChunk {
			continue
		}
		att := attribute(ev, prev)
		prev = att
		if ev.Type == models.TraceCollaboratorInvoke && ev.Collaborator != "" {
			counts[[2]string{att.Agent, ev.Collaborator}]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	edges := make([]models.CollaborationEdge, 0, len(counts))
	for pair, count := range counts {
		edges = append(edges, models.CollaborationEdge{From: pair[0], To: pair[1], Count: count})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// fillCollaborationReceived records, on each step, which agents invoked it.
func fillCollaborationReceived(steps []models.AgentStep, edges []models.CollaborationEdge) {
	for i := range steps {
		for _, edge := range edges {
			if edge.To == steps[i].AgentName && !contains(steps[i].CollaborationReceived, edge.From) {
				steps[i].CollaborationReceived = append(steps[i].CollaborationReceived, edge.From)
			}
		}
	}
}

// computeQuality derives the per-record quality signals.
func computeQuality(record *models.ConversationRecord, events []*models.TraceEvent) models.QualitySignals {
	quality := models.QualitySignals{
		StepCount:            len(record.AgentFlow),
		TotalWallClockMillis: record.DurationMS,
	}

	totalReasoningChars := 0
	for _, step := range record.AgentFlow {
		totalReasoningChars += len(step.Reasoning.OriginalText)
		for _, dp := range step.Reasoning.DecisionPoints {
			totalReasoningChars += len(dp)
		}
		if step.Reasoning.ContextSetup != nil {
			totalReasoningChars += len(step.Reasoning.ContextSetup.UserRequest)
		}
		for _, exec := range step.ToolsUsed {
			if !exec.Success {
				quality.ToolErrorCount++
			}
		}
	}
	if quality.StepCount > 0 {
		quality.AvgReasoningChars = totalReasoningChars / quality.StepCount
	}

	for _, ev := range events {
		if ev.Type == models.TraceKnowledgeLookup && len(ev.References) > 0 {
			quality.KnowledgeHitCount += len(ev.References)
		}
	}
	return quality
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
