package recorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// renderText produces the human-readable transcript written as
// conversation.txt. It is meant to be skimmed in an object-store console, so
// it leads with the outcome and keeps per-step detail compact.
func renderText(record *models.ConversationRecord) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "Conversation %s\n", record.ConversationID)
	fmt.Fprintf(&b, "Channel: %s (%s)\n", record.Channel, record.SourceSystem)
	fmt.Fprintf(&b, "Session: %s\n", record.SessionID)
	fmt.Fprintf(&b, "Window:  %s .. %s (%dms)\n",
		record.StartedAt.UTC().Format(time.RFC3339),
		record.EndedAt.UTC().Format(time.RFC3339),
		record.DurationMS)
	fmt.Fprintf(&b, "Outcome: %s\n", outcomeLabel(record))
	b.WriteString("\n")

	fmt.Fprintf(&b, "USER QUERY (confidence %.2f)\n", record.UserQueryConfidence)
	writeIndented(&b, record.UserQuery)
	b.WriteString("\n")

	for i, step := range record.AgentFlow {
		fmt.Fprintf(&b, "STEP %d: %s (attribution %.2f%s)\n",
			i+1, step.AgentName, step.AttributionConfidence, lowMark(step.LowConfidence))
		writeStep(&b, step)
		b.WriteString("\n")
	}

	if len(record.CollaborationMap) > 0 {
		b.WriteString("COLLABORATION\n")
		for _, edge := range record.CollaborationMap {
			fmt.Fprintf(&b, "  %s -> %s (x%d)\n", edge.From, edge.To, edge.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("FINAL RESPONSE\n")
	writeIndented(&b, record.FinalResponse)
	if record.ErrorMessage != "" {
		b.WriteString("\nERROR\n")
		writeIndented(&b, record.ErrorMessage)
	}

	return []byte(b.String())
}

func writeStep(b *strings.Builder, step models.AgentStep) {
	r := step.Reasoning
	if r.ParsingError != "" {
		fmt.Fprintf(b, "  reasoning unparsed (%s)\n", r.ParsingError)
	}
	if r.ContextSetup != nil && r.ContextSetup.UserRequest != "" {
		fmt.Fprintf(b, "  request: %s\n", r.ContextSetup.UserRequest)
	}
	for _, search := range r.KnowledgeSearches {
		fmt.Fprintf(b, "  kb search: %s (%d refs)\n", search.Query, len(search.References))
	}
	for _, dp := range r.DecisionPoints {
		fmt.Fprintf(b, "  decision: %s\n", dp)
	}
	for _, tool := range step.ToolsUsed {
		status := "ok"
		if !tool.Success {
			status = "FAILED"
		}
		fmt.Fprintf(b, "  tool %s [%s] %dms: %s\n",
			tool.ToolName, status, tool.ExecutionTimeMS, tool.ResultSummary)
	}
	if r.FinalSynthesis != nil && r.FinalSynthesis.Approach != "" {
		fmt.Fprintf(b, "  synthesis: %s (confidence %s)\n",
			r.FinalSynthesis.Approach, r.FinalSynthesis.Confidence)
	}
	if len(step.CollaborationSent) > 0 {
		fmt.Fprintf(b, "  delegated to: %s\n", strings.Join(step.CollaborationSent, ", "))
	}
}

func writeIndented(b *strings.Builder, text string) {
	if strings.TrimSpace(text) == "" {
		b.WriteString("  (empty)\n")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func outcomeLabel(record *models.ConversationRecord) string {
	if record.Success {
		return "success"
	}
	return "failed"
}

func lowMark(low bool) string {
	if low {
		return ", LOW"
	}
	return ""
}
