package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revops-ai/relay/pkg/models"
)

var toolsBase = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPairToolEventsPairsInOrder(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolInvoke, Timestamp: toolsBase, ToolName: "sql_query", ToolParams: "limit=10"},
		{Type: models.TraceToolOutput, Timestamp: toolsBase.Add(250 * time.Millisecond), ToolOutput: "120 rows"},
	}

	execs := pairToolEvents(events)
	require.Len(t, execs, 1)
	assert.Equal(t, "sql_query", execs[0].ToolName)
	assert.Equal(t, "limit=10", execs[0].ParametersSummary)
	assert.Equal(t, "120 rows", execs[0].ResultSummary)
	assert.True(t, execs[0].Success)
	assert.Equal(t, int64(250), execs[0].ExecutionTimeMS)
}

func TestPairToolEventsUnmatchedInvokeFails(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolInvoke, Timestamp: toolsBase, ToolName: "web_search", ToolParams: "q=acme"},
	}

	execs := pairToolEvents(events)
	require.Len(t, execs, 1)
	assert.Equal(t, "no output observed", execs[0].ResultSummary)
	assert.False(t, execs[0].Success)
}

func TestPairToolEventsErrorOutput(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolInvoke, Timestamp: toolsBase, ToolName: "sql_query"},
		{Type: models.TraceToolOutput, Timestamp: toolsBase.Add(time.Second), ToolOutput: "error: relation does not exist"},
	}

	execs := pairToolEvents(events)
	require.Len(t, execs, 1)
	assert.False(t, execs[0].Success)
}

func TestPairToolEventsExplicitErrorFlag(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolInvoke, Timestamp: toolsBase, ToolName: "sql_query"},
		{Type: models.TraceToolOutput, Timestamp: toolsBase.Add(time.Second), ToolOutput: "no data", ToolError: true},
	}

	execs := pairToolEvents(events)
	require.Len(t, execs, 1)
	assert.False(t, execs[0].Success)
}

func TestPairToolEventsDeduplicates(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolInvoke, Timestamp: toolsBase, ToolName: "sql_query", ToolParams: "q=1"},
		{Type: models.TraceToolOutput, Timestamp: toolsBase.Add(time.Second), ToolOutput: "5 rows"},
		{Type: models.TraceToolInvoke, Timestamp: toolsBase.Add(2 * time.Second), ToolName: "sql_query", ToolParams: "q=1"},
		{Type: models.TraceToolOutput, Timestamp: toolsBase.Add(3 * time.Second), ToolOutput: "5 rows"},
	}

	execs := pairToolEvents(events)
	assert.Len(t, execs, 1)
}

func TestPairToolEventsOutputWithoutInvoke(t *testing.T) {
	events := []*models.TraceEvent{
		{Type: models.TraceToolOutput, Timestamp: toolsBase, ToolOutput: "ok"},
	}

	execs := pairToolEvents(events)
	require.Len(t, execs, 1)
	assert.Equal(t, unknownAgent, execs[0].ToolName)
}

func TestCountDataOperations(t *testing.T) {
	execs := []models.ToolExecution{
		{ToolName: "sql_query", ResultSummary: "ok"},
		{ToolName: "firmographics", ResultSummary: "no match"},
		{ToolName: "web_search", ResultSummary: "scan returned 3 rows"},
	}
	assert.Equal(t, 2, countDataOperations(execs))
}
