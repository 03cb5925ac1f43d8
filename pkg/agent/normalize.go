package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/revops-ai/relay/pkg/models"
)

// maxReferenceContentLength bounds knowledge-base reference content carried
// in normalized events; full documents stay in the knowledge base.
const maxReferenceContentLength = 500

// chunkIDMetadataKey is the metadata key the knowledge base stamps on each
// retrieved chunk.
const chunkIDMetadataKey = "x-amz-bedrock-kb-chunk-id"

// normalizeResponseEvent converts one vendor stream event into normalized
// trace events. Unknown event shapes degrade to lifecycle events rather
// than being dropped silently.
func normalizeResponseEvent(ev types.ResponseStream, ts time.Time) []*models.TraceEvent {
	switch v := ev.(type) {
	case *types.ResponseStreamMemberChunk:
		return []*models.TraceEvent{{
			Type:      models.TraceChunk,
			Timestamp: ts,
			Text:      string(v.Value.Bytes),
		}}
	case *types.ResponseStreamMemberTrace:
		return normalizeTracePart(v.Value, ts)
	case *types.ResponseStreamMemberReturnControl:
		return []*models.TraceEvent{{
			Type:      models.TraceLifecycle,
			Timestamp: ts,
			Text:      "return_control: " + aws.ToString(v.Value.InvocationId),
		}}
	default:
		return []*models.TraceEvent{{
			Type:      models.TraceLifecycle,
			Timestamp: ts,
			Text:      fmt.Sprintf("unhandled stream event %T", ev),
		}}
	}
}

func normalizeTracePart(tp types.TracePart, ts time.Time) []*models.TraceEvent {
	agentName := aws.ToString(tp.CollaboratorName)
	if agentName == "" {
		agentName = aws.ToString(tp.AgentId)
	}

	switch tr := tp.Trace.(type) {
	case *types.TraceMemberOrchestrationTrace:
		return normalizeOrchestration(tr.Value, agentName, ts)
	case *types.TraceMemberFailureTrace:
		return []*models.TraceEvent{{
			Type:         models.TraceError,
			Timestamp:    ts,
			AgentName:    agentName,
			ErrorMessage: aws.ToString(tr.Value.FailureReason),
		}}
	case *types.TraceMemberGuardrailTrace:
		return lifecycleEvent("guardrail evaluation", agentName, ts)
	case *types.TraceMemberPreProcessingTrace:
		return lifecycleEvent("preprocessing", agentName, ts)
	case *types.TraceMemberPostProcessingTrace:
		return lifecycleEvent("postprocessing", agentName, ts)
	case *types.TraceMemberRoutingClassifierTrace:
		return lifecycleEvent("routing classification", agentName, ts)
	default:
		return lifecycleEvent(fmt.Sprintf("unhandled trace %T", tp.Trace), agentName, ts)
	}
}

func normalizeOrchestration(ot types.OrchestrationTrace, agentName string, ts time.Time) []*models.TraceEvent {
	switch o := ot.(type) {
	case *types.OrchestrationTraceMemberRationale:
		return []*models.TraceEvent{{
			Type:      models.TraceRationale,
			Timestamp: ts,
			AgentName: agentName,
			Text:      aws.ToString(o.Value.Text),
		}}
	case *types.OrchestrationTraceMemberInvocationInput:
		return normalizeInvocationInput(o.Value, agentName, ts)
	case *types.OrchestrationTraceMemberObservation:
		return normalizeObservation(o.Value, agentName, ts)
	case *types.OrchestrationTraceMemberModelInvocationInput:
		return []*models.TraceEvent{{
			Type:      models.TraceModelInput,
			Timestamp: ts,
			AgentName: agentName,
			Text:      aws.ToString(o.Value.Text),
		}}
	case *types.OrchestrationTraceMemberModelInvocationOutput:
		var text string
		if o.Value.RawResponse != nil {
			text = aws.ToString(o.Value.RawResponse.Content)
		}
		return []*models.TraceEvent{{
			Type:      models.TraceModelOutput,
			Timestamp: ts,
			AgentName: agentName,
			Text:      text,
		}}
	default:
		return lifecycleEvent(fmt.Sprintf("unhandled orchestration trace %T", ot), agentName, ts)
	}
}

func normalizeInvocationInput(in types.InvocationInput, agentName string, ts time.Time) []*models.TraceEvent {
	switch {
	case in.AgentCollaboratorInvocationInput != nil:
		collab := in.AgentCollaboratorInvocationInput
		var text string
		if collab.Input != nil {
			text = aws.ToString(collab.Input.Text)
		}
		return []*models.TraceEvent{{
			Type:         models.TraceCollaboratorInvoke,
			Timestamp:    ts,
			AgentName:    agentName,
			Collaborator: aws.ToString(collab.AgentCollaboratorName),
			Text:         text,
		}}
	case in.ActionGroupInvocationInput != nil:
		ag := in.ActionGroupInvocationInput
		toolName := aws.ToString(ag.Function)
		if toolName == "" {
			toolName = aws.ToString(ag.ActionGroupName)
		}
		return []*models.TraceEvent{{
			Type:       models.TraceToolInvoke,
			Timestamp:  ts,
			AgentName:  agentName,
			ToolName:   toolName,
			ToolParams: formatParameters(ag.Parameters),
		}}
	case in.KnowledgeBaseLookupInput != nil:
		kb := in.KnowledgeBaseLookupInput
		return []*models.TraceEvent{{
			Type:            models.TraceKnowledgeLookup,
			Timestamp:       ts,
			AgentName:       agentName,
			KnowledgeBaseID: aws.ToString(kb.KnowledgeBaseId),
			KnowledgeQuery:  aws.ToString(kb.Text),
		}}
	default:
		return lifecycleEvent(fmt.Sprintf("invocation input type %s", in.InvocationType), agentName, ts)
	}
}

func normalizeObservation(ob types.Observation, agentName string, ts time.Time) []*models.TraceEvent {
	switch {
	case ob.AgentCollaboratorInvocationOutput != nil:
		out := ob.AgentCollaboratorInvocationOutput
		var text string
		if out.Output != nil {
			text = aws.ToString(out.Output.Text)
		}
		return []*models.TraceEvent{{
			Type:         models.TraceCollaboratorOutput,
			Timestamp:    ts,
			AgentName:    agentName,
			Collaborator: aws.ToString(out.AgentCollaboratorName),
			Text:         text,
		}}
	case ob.ActionGroupInvocationOutput != nil:
		return []*models.TraceEvent{{
			Type:       models.TraceToolOutput,
			Timestamp:  ts,
			AgentName:  agentName,
			ToolOutput: aws.ToString(ob.ActionGroupInvocationOutput.Text),
		}}
	case ob.KnowledgeBaseLookupOutput != nil:
		return []*models.TraceEvent{{
			Type:       models.TraceKnowledgeLookup,
			Timestamp:  ts,
			AgentName:  agentName,
			References: normalizeReferences(ob.KnowledgeBaseLookupOutput.RetrievedReferences),
		}}
	case ob.FinalResponse != nil:
		return []*models.TraceEvent{{
			Type:      models.TraceModelOutput,
			Timestamp: ts,
			AgentName: agentName,
			Text:      aws.ToString(ob.FinalResponse.Text),
		}}
	case ob.RepromptResponse != nil:
		return lifecycleEvent("reprompt: "+aws.ToString(ob.RepromptResponse.Text), agentName, ts)
	default:
		return lifecycleEvent(fmt.Sprintf("observation type %s", ob.Type), agentName, ts)
	}
}

func normalizeReferences(refs []types.RetrievedReference) []models.KnowledgeReference {
	out := make([]models.KnowledgeReference, 0, len(refs))
	for _, ref := range refs {
		var kr models.KnowledgeReference
		if ref.Content != nil {
			kr.Content = truncate(aws.ToString(ref.Content.Text), maxReferenceContentLength)
		}
		if ref.Location != nil && ref.Location.S3Location != nil {
			kr.Location = aws.ToString(ref.Location.S3Location.Uri)
		}
		if len(ref.Metadata) > 0 {
			kr.Metadata = make(map[string]string, len(ref.Metadata))
			for k, v := range ref.Metadata {
				kr.Metadata[k] = documentString(v)
			}
			kr.ID = kr.Metadata[chunkIDMetadataKey]
		}
		out = append(out, kr)
	}
	return out
}

// documentString flattens a metadata document value to a display string.
// Values that fail to decode are dropped rather than failing the event.
func documentString(doc document.Interface) string {
	if doc == nil {
		return ""
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func formatParameters(params []types.Parameter) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s=%s", aws.ToString(p.Name), aws.ToString(p.Value)))
	}
	return strings.Join(parts, ", ")
}

func lifecycleEvent(text, agentName string, ts time.Time) []*models.TraceEvent {
	return []*models.TraceEvent{{
		Type:      models.TraceLifecycle,
		Timestamp: ts,
		AgentName: agentName,
		Text:      text,
	}}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
