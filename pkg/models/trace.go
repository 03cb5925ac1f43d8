package models

import "time"

// TraceEventType discriminates the tagged TraceEvent variant.
type TraceEventType string

// Trace event types, normalized from the agent runtime's vendor stream.
const (
	TraceChunk              TraceEventType = "chunk"
	TraceRationale          TraceEventType = "rationale"
	TraceCollaboratorInvoke TraceEventType = "collaborator_invoke"
	TraceCollaboratorOutput TraceEventType = "collaborator_output"
	TraceToolInvoke         TraceEventType = "tool_invoke"
	TraceToolOutput         TraceEventType = "tool_output"
	TraceKnowledgeLookup    TraceEventType = "knowledge_lookup"
	TraceModelInput         TraceEventType = "model_input"
	TraceModelOutput        TraceEventType = "model_output"
	TraceError              TraceEventType = "error"
	TraceLifecycle          TraceEventType = "lifecycle"
)

// KnowledgeReference is a single retrieved reference from a knowledge-base
// lookup. Content is truncated to 500 chars at normalization time.
type KnowledgeReference struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content,omitempty"`
	Location string            `json:"location,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TraceEvent is the normalized form of one event from the agent stream.
// Which payload fields are set depends on Type; downstream consumers switch
// on Type and never touch the vendor representation.
type TraceEvent struct {
	Type      TraceEventType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`

	// AgentName names the agent the runtime attributed this event to, when
	// the stream carries that information. Empty otherwise.
	AgentName string `json:"agent_name,omitempty"`

	// Text carries chunk text, rationale text, model input/output text, or
	// lifecycle detail depending on Type.
	Text string `json:"text,omitempty"`

	// Collaborator fields (collaborator_invoke / collaborator_output).
	Collaborator string `json:"collaborator,omitempty"`

	// Tool fields (tool_invoke / tool_output).
	ToolName   string `json:"tool_name,omitempty"`
	ToolParams string `json:"tool_params,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
	ToolError  bool   `json:"tool_error,omitempty"`

	// Knowledge-base fields (knowledge_lookup).
	KnowledgeBaseID string               `json:"knowledge_base_id,omitempty"`
	KnowledgeQuery  string               `json:"knowledge_query,omitempty"`
	References      []KnowledgeReference `json:"references,omitempty"`

	// Error detail (error).
	ErrorMessage string `json:"error_message,omitempty"`
}
