package recorder

import (
	"regexp"

	"github.com/revops-ai/relay/pkg/models"
)

// Attribution confidence levels by evidence source.
const (
	confidenceExplicit  = 0.95 // stream names the agent directly
	confidenceHandoff   = 0.6  // rationale text announces a handoff
	confidenceInherited = 0.4  // carried over from the previous event
	confidenceUnknown   = 0.2  // nothing to go on

	// lowConfidenceThreshold flags attributions that should be treated as
	// guesses by downstream analysis.
	lowConfidenceThreshold = 0.5
)

// unknownAgent labels events that could not be attributed at all.
const unknownAgent = "unknown"

var handoffPattern = regexp.MustCompile(
	`(?i)(?:handing off to|delegating to|routing to|consulting|asking) (?:the )?([A-Z][A-Za-z0-9 _-]*?(?:Agent|Analyst))\b`)

// attribution is the inferred owner of a trace event.
type attribution struct {
	Agent      string
	Confidence float64
}

func (a attribution) low() bool {
	return a.Confidence < lowConfidenceThreshold
}

// attribute infers which agent produced an event. Evidence is combined in
// strength order: explicit naming in the stream, a handoff announced in
// rationale text, then inheritance from the previous attribution.
func attribute(ev *models.TraceEvent, prev attribution) attribution {
	if ev.AgentName != "" {
		return attribution{Agent: ev.AgentName, Confidence: confidenceExplicit}
	}

	if ev.Type == models.TraceRationale && ev.Text != "" {
		if m := handoffPattern.FindStringSubmatch(ev.Text); m != nil {
			// The rationale itself still belongs to the announcing agent;
			// the named agent takes over from the next event. Callers use
			// the returned agent for subsequent events.
			return attribution{Agent: m[1], Confidence: confidenceHandoff}
		}
	}

	if prev.Agent != "" && prev.Agent != unknownAgent {
		return attribution{Agent: prev.Agent, Confidence: confidenceInherited}
	}
	return attribution{Agent: unknownAgent, Confidence: confidenceUnknown}
}
