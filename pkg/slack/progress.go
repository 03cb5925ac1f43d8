package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/revops-ai/relay/pkg/models"
)

// friendlyToolNames maps raw tool/action-group names to user-facing
// descriptions shown in progress updates.
var friendlyToolNames = map[string]string{
	"execute_sql":      "Running SQL query on warehouse",
	"query_warehouse":  "Running SQL query on warehouse",
	"search_crm":       "Searching CRM records",
	"fetch_pipeline":   "Fetching pipeline data",
	"knowledge_lookup": "Searching knowledge base",
}

// ProgressReporter turns trace events into throttled in-place updates of the
// placeholder message. One reporter serves one work item; it is safe for use
// from the single invoker goroutine plus the final-update caller.
type ProgressReporter struct {
	client    *Client
	channelID string
	threadTS  string
	messageTS string
	throttle  time.Duration
	now       func() time.Time

	mu         sync.Mutex
	lastUpdate time.Time
}

// NewProgressReporter creates a reporter bound to the placeholder message.
// messageTS may be empty when the placeholder post failed at ingress; the
// reporter then skips progress updates and posts the final text fresh.
func NewProgressReporter(client *Client, channelID, threadTS, messageTS string, throttle time.Duration) *ProgressReporter {
	return &ProgressReporter{
		client:    client,
		channelID: channelID,
		threadTS:  threadTS,
		messageTS: messageTS,
		throttle:  throttle,
		now:       time.Now,
	}
}

// Observe maps a trace event to a progress snippet and, if the throttle
// permits, rewrites the placeholder with it. Fail-open: update errors are
// swallowed; progress is best-effort.
func (r *ProgressReporter) Observe(ctx context.Context, ev *models.TraceEvent) {
	if r.messageTS == "" {
		return
	}
	snippet := ProgressSnippet(ev)
	if snippet == "" {
		return
	}

	r.mu.Lock()
	if r.now().Sub(r.lastUpdate) < r.throttle {
		r.mu.Unlock()
		return
	}
	r.lastUpdate = r.now()
	r.mu.Unlock()

	if err := r.client.UpdateMessage(ctx, r.channelID, r.messageTS, snippet); err != nil {
		r.client.logger.Warn("Progress update failed",
			"channel_id", r.channelID, "ts", r.messageTS, "error", err)
	}
}

// Finalize rewrites the placeholder with the final text, bypassing the
// throttle. Called exactly once when the stream completes or fails. Without
// a placeholder the text goes out as a fresh threaded message instead, so
// the response is not lost to an earlier ingress hiccup.
func (r *ProgressReporter) Finalize(ctx context.Context, text string) error {
	if r.messageTS == "" {
		return r.client.PostMessage(ctx, r.channelID, r.threadTS, text)
	}
	return r.client.UpdateMessage(ctx, r.channelID, r.messageTS, text)
}

// ProgressSnippet maps a trace event to a human-readable progress line.
// Priority: rationale > collaborator invocation > tool invocation >
// observation/synthesis. Events outside these categories produce no update.
func ProgressSnippet(ev *models.TraceEvent) string {
	switch ev.Type {
	case models.TraceRationale:
		if ev.Text == "" {
			return ""
		}
		return "\U0001F4AD Thinking: " + firstLine(ev.Text, 140)
	case models.TraceCollaboratorInvoke:
		if ev.Collaborator == "" {
			return ""
		}
		return fmt.Sprintf("\U0001F4CA Calling %s...", humanizeAgentName(ev.Collaborator))
	case models.TraceToolInvoke:
		if desc, ok := friendlyToolNames[strings.ToLower(ev.ToolName)]; ok {
			return desc + "..."
		}
		if ev.ToolName == "" {
			return ""
		}
		return fmt.Sprintf("Running %s...", ev.ToolName)
	case models.TraceToolOutput, models.TraceKnowledgeLookup:
		return "\U0001F4C8 Processing query results..."
	case models.TraceModelOutput:
		return "\U0001F4DD Finalizing analysis..."
	default:
		return ""
	}
}

// humanizeAgentName turns "data_agent" into "Data Agent".
func humanizeAgentName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
