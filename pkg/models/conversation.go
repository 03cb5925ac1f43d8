package models

import "time"

// ContextSetup captures the temporal preamble the parser finds in a
// reasoning block: current date, fiscal quarter, and the user's request line.
type ContextSetup struct {
	CurrentDate string `json:"current_date,omitempty"`
	Quarter     string `json:"quarter,omitempty"`
	UserRequest string `json:"user_request,omitempty"`
}

// KnowledgeSearch is one knowledge-base search extracted from reasoning text.
type KnowledgeSearch struct {
	Query           string               `json:"query"`
	KnowledgeBaseID string               `json:"knowledge_base_id,omitempty"`
	References      []KnowledgeReference `json:"references,omitempty"`
}

// ToolExecution is a normalized tool invocation paired with its output.
type ToolExecution struct {
	ToolName          string `json:"tool_name"`
	ParametersSummary string `json:"parameters_summary,omitempty"`
	ResultSummary     string `json:"result_summary,omitempty"`
	Success           bool   `json:"success"`
	ExecutionTimeMS   int64  `json:"execution_time_ms"`
}

// FinalSynthesis describes how the agent concluded: the approach sentence,
// data sources it referenced, and a coarse confidence bucket.
type FinalSynthesis struct {
	Approach    string   `json:"approach,omitempty"`
	DataSources []string `json:"data_sources,omitempty"`
	Confidence  string   `json:"confidence,omitempty"` // high / medium / low
}

// ReasoningBreakdown is the typed result of parsing one reasoning block.
// When parsing fails, ParsingError is set and OriginalText carries the first
// 1000 characters of the raw block; the structured fields stay empty.
type ReasoningBreakdown struct {
	ContextSetup      *ContextSetup     `json:"context_setup,omitempty"`
	KnowledgeSearches []KnowledgeSearch `json:"knowledge_searches,omitempty"`
	ToolExecutions    []ToolExecution   `json:"tool_executions,omitempty"`
	DecisionPoints    []string          `json:"decision_points,omitempty"`
	FinalSynthesis    *FinalSynthesis   `json:"final_synthesis,omitempty"`

	ParsingError string `json:"parsing_error,omitempty"`
	OriginalText string `json:"original_reasoning_text,omitempty"`
}

// AgentStep is one step of the agent flow: a single agent's reasoning,
// tool usage, and collaborations within the session.
type AgentStep struct {
	AgentName             string  `json:"agent_name"`
	AttributionConfidence float64 `json:"attribution_confidence"`
	LowConfidence         bool    `json:"low_confidence,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Reasoning ReasoningBreakdown `json:"reasoning_breakdown"`

	// PromptFingerprint references the system prompt body in the record's
	// fingerprint map; the body itself is never repeated per step.
	PromptFingerprint string `json:"system_prompt_fingerprint,omitempty"`

	ToolsUsed             []ToolExecution `json:"tools_used,omitempty"`
	DataOperations        int             `json:"data_operations"`
	CollaborationSent     []string        `json:"collaboration_sent,omitempty"`
	CollaborationReceived []string        `json:"collaboration_received,omitempty"`
}

// CollaborationEdge is one directed agent→agent interaction in the
// collaboration map, with an occurrence count.
type CollaborationEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// FunctionAudit aggregates tool and data-operation counters for the session.
type FunctionAudit struct {
	ToolExecutions int `json:"tool_executions"`
	DataOperations int `json:"data_operations"`
}

// QualitySignals holds the per-record quality metrics computed at
// finalization. Stored for downstream analysis only; no alerting.
type QualitySignals struct {
	StepCount            int   `json:"step_count"`
	AvgReasoningChars    int   `json:"avg_reasoning_chars"`
	ToolErrorCount       int   `json:"tool_error_count"`
	KnowledgeHitCount    int   `json:"knowledge_hit_count"`
	TotalWallClockMillis int64 `json:"total_wall_clock_ms"`
}

// ConversationRecord is the canonical artifact assembled by the recorder.
// The fingerprint map is append-only within a record; every step fingerprint
// resolves to exactly one body; trace ordering is the stream arrival order.
type ConversationRecord struct {
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Channel        string    `json:"channel"`
	SourceSystem   string    `json:"source_system"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	DurationMS     int64     `json:"duration_ms"`

	UserQuery           string  `json:"user_query"`
	UserQueryConfidence float64 `json:"user_query_confidence"`
	FinalResponse       string  `json:"final_response"`
	Success             bool    `json:"success"`
	ErrorMessage        string  `json:"error_message,omitempty"`

	AgentFlow        []AgentStep         `json:"agent_flow"`
	CollaborationMap []CollaborationEdge `json:"collaboration_map,omitempty"`
	FunctionAudit    FunctionAudit       `json:"function_audit"`

	// SystemPromptFingerprints maps fingerprint → prompt body. Steps
	// reference bodies by fingerprint, which is the primary size-reduction
	// mechanism for records with long repeated system prompts.
	SystemPromptFingerprints map[string]string `json:"system_prompt_fingerprints,omitempty"`

	Quality QualitySignals `json:"quality"`

	// TraceEvents is the raw ordered event log, exported as traces.json.
	TraceEvents []TraceEvent `json:"-"`
}
