package recorder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReasoning = `[USER]
Current context: today is 2026-03-10. Current quarter: Q1 2026.
Analyze the Acme renewal deal.
[KNOWLEDGE BASE SEARCH]
Query: acme renewal history
Reference: Renewal notes for Acme (s3://kb/acme.md)
[OBSERVATION]
Tool: sql_query
Parameters: select * from deals where account = 'acme'
Result: 42 rows returned
[ASSISTANT]
Based on the deal data, I will summarize the renewal risk. Retrieved records support a positive outlook.`

func TestParseReasoningSections(t *testing.T) {
	out := ParseReasoning(sampleReasoning)
	require.NotNil(t, out)
	assert.Empty(t, out.ParsingError)

	require.NotNil(t, out.ContextSetup)
	assert.Equal(t, "2026-03-10", out.ContextSetup.CurrentDate)
	assert.Equal(t, "Q1 2026", out.ContextSetup.Quarter)
	assert.Equal(t, "Analyze the Acme renewal deal.", out.ContextSetup.UserRequest)

	require.Len(t, out.KnowledgeSearches, 1)
	search := out.KnowledgeSearches[0]
	assert.Equal(t, "acme renewal history", search.Query)
	require.Len(t, search.References, 1)
	assert.Equal(t, "s3://kb/acme.md", search.References[0].Location)
	assert.Equal(t, "Renewal notes for Acme", search.References[0].Content)

	require.Len(t, out.ToolExecutions, 1)
	exec := out.ToolExecutions[0]
	assert.Equal(t, "sql_query", exec.ToolName)
	assert.Equal(t, "select * from deals where account = 'acme'", exec.ParametersSummary)
	assert.Equal(t, "42 rows returned", exec.ResultSummary)
	assert.True(t, exec.Success)

	require.NotNil(t, out.FinalSynthesis)
	assert.Equal(t, "Based on the deal data, I will summarize the renewal risk.", out.FinalSynthesis.Approach)
	assert.Equal(t, "high", out.FinalSynthesis.Confidence)

	require.NotEmpty(t, out.DecisionPoints)
	assert.Equal(t, "Based on the deal data, I will summarize the renewal risk.", out.DecisionPoints[0])
}

func TestParseReasoningObservationError(t *testing.T) {
	out := ParseReasoning("[OBSERVATION]\nTool: web_search\nError: upstream timeout\n")
	require.Len(t, out.ToolExecutions, 1)
	assert.False(t, out.ToolExecutions[0].Success)
	assert.Equal(t, "upstream timeout", out.ToolExecutions[0].ResultSummary)
}

func TestParseReasoningRowCountFallback(t *testing.T) {
	out := ParseReasoning("[OBSERVATION]\nTool: sql_query\nThe warehouse scan touched 17 rows in total.\n")
	require.Len(t, out.ToolExecutions, 1)
	assert.Equal(t, "17 rows", out.ToolExecutions[0].ResultSummary)
}

func TestParseReasoningTruncatesLongReference(t *testing.T) {
	long := strings.Repeat("x", 800)
	out := ParseReasoning("[KNOWLEDGE BASE SEARCH]\nQuery: q\nReference: " + long + "\n")
	require.Len(t, out.KnowledgeSearches, 1)
	require.Len(t, out.KnowledgeSearches[0].References, 1)
	assert.Len(t, out.KnowledgeSearches[0].References[0].Content, 500)
}

func TestParseReasoningUnlabeledText(t *testing.T) {
	out := ParseReasoning("I need to check pipeline coverage before answering.")
	assert.Empty(t, out.ParsingError)
	assert.Nil(t, out.ContextSetup)
	require.NotEmpty(t, out.DecisionPoints)
	assert.Contains(t, out.DecisionPoints[0], "I need to check pipeline coverage")
	require.NotNil(t, out.FinalSynthesis)
	assert.Equal(t, "I need to check pipeline coverage before answering.", out.FinalSynthesis.Approach)
	assert.Equal(t, "medium", out.FinalSynthesis.Confidence)
}

func TestParseReasoningEmpty(t *testing.T) {
	out := ParseReasoning("   \n\t")
	require.NotNil(t, out)
	assert.Empty(t, out.ParsingError)
	assert.Nil(t, out.FinalSynthesis)
	assert.Empty(t, out.DecisionPoints)
}

func TestParseReasoningMarkerOnlyInput(t *testing.T) {
	out := ParseReasoning("[USER]\n[OBSERVATION]\n[ASSISTANT]\n")
	require.NotNil(t, out)
	assert.Empty(t, out.ParsingError)
	assert.Nil(t, out.FinalSynthesis)
	assert.Empty(t, out.ToolExecutions)
}

func TestParseReasoningCorruptObservationFallsBack(t *testing.T) {
	text := "[USER]\nAnalyze the pipeline.\n[OBSERVATION]\n\x00###corrupt###\n[ASSISTANT]\nDone."
	out := ParseReasoning(text)

	require.NotNil(t, out)
	assert.Empty(t, out.ToolExecutions)
	assert.Contains(t, out.ParsingError, "observation section")
	assert.Equal(t, text, out.OriginalText)
	assert.Nil(t, out.FinalSynthesis)
	assert.Nil(t, out.ContextSetup)
}

func TestParseReasoningCorruptObservationCapsOriginalText(t *testing.T) {
	text := "[OBSERVATION]\n" + strings.Repeat("garbled output without any labels ", 100)
	out := ParseReasoning(text)

	assert.NotEmpty(t, out.ParsingError)
	assert.Len(t, out.OriginalText, fallbackTextLimit)
}

func TestFallbackBreakdownCapsText(t *testing.T) {
	long := strings.Repeat("a", 5000)
	out := fallbackBreakdown(long, "parser panic: boom")
	assert.Equal(t, "parser panic: boom", out.ParsingError)
	assert.Len(t, out.OriginalText, fallbackTextLimit)
	assert.Empty(t, out.DecisionPoints)
}
