package recorder

import (
	"strings"

	"github.com/revops-ai/relay/pkg/models"
)

const maxResultSummaryLength = 300

// pairToolEvents matches tool invocations with their outputs by monotonic
// order: the oldest unmatched invocation receives the next output. Repeated
// identical executions (a tool reported both as a trace event and in a
// summary) are deduplicated.
func pairToolEvents(events []*models.TraceEvent) []models.ToolExecution {
	type pendingInvoke struct {
		ev *models.TraceEvent
	}

	var pending []pendingInvoke
	var execs []models.ToolExecution

	appendExec := func(exec models.ToolExecution) {
		for _, prev := range execs {
			if prev.ToolName == exec.ToolName &&
				prev.ParametersSummary == exec.ParametersSummary &&
				prev.ResultSummary == exec.ResultSummary {
				return
			}
		}
		execs = append(execs, exec)
	}

	for _, ev := range events {
		switch ev.Type {
		case models.TraceToolInvoke:
			pending = append(pending, pendingInvoke{ev: ev})

		case models.TraceToolOutput:
			exec := models.ToolExecution{
				ResultSummary: truncateSummary(ev.ToolOutput),
				Success:       !ev.ToolError && !looksLikeError(ev.ToolOutput),
			}
			if len(pending) > 0 {
				invoke := pending[0]
				pending = pending[1:]
				exec.ToolName = invoke.ev.ToolName
				exec.ParametersSummary = invoke.ev.ToolParams
				exec.ExecutionTimeMS = ev.Timestamp.Sub(invoke.ev.Timestamp).Milliseconds()
			} else {
				exec.ToolName = ev.ToolName
			}
			if exec.ToolName == "" {
				exec.ToolName = unknownAgent
			}
			appendExec(exec)
		}
	}

	// Invocations that never produced an output are recorded as failures.
	for _, invoke := range pending {
		appendExec(models.ToolExecution{
			ToolName:          invoke.ev.ToolName,
			ParametersSummary: invoke.ev.ToolParams,
			ResultSummary:     "no output observed",
			Success:           false,
		})
	}
	return execs
}

// countDataOperations counts executions that touched the warehouse: SQL and
// query tools, or results that report row counts.
func countDataOperations(execs []models.ToolExecution) int {
	count := 0
	for _, exec := range execs {
		name := strings.ToLower(exec.ToolName)
		if strings.Contains(name, "sql") || strings.Contains(name, "query") ||
			rowCountPattern.MatchString(exec.ResultSummary) {
			count++
		}
	}
	return count
}

func looksLikeError(output string) bool {
	return errorTokenPattern.MatchString(output)
}

func truncateSummary(s string) string {
	if len(s) <= maxResultSummaryLength {
		return s
	}
	return s[:maxResultSummaryLength]
}
