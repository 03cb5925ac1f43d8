package models

import "time"

// SessionResult is the outcome of one agent invocation: the assembled
// response, the ordered trace, and the session identity. It is the input to
// both conversation recording and outbound delivery.
type SessionResult struct {
	Item          *WorkItem
	SessionKey    string
	Prompt        string
	FinalResponse string
	TraceEvents   []*TraceEvent
	Success       bool
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// ProcessingTime returns the wall-clock duration of the invocation.
func (r *SessionResult) ProcessingTime() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// AgentsUsed returns the distinct agent and collaborator names observed in
// the trace, in first-seen order.
func (r *SessionResult) AgentsUsed() []string {
	seen := make(map[string]bool)
	var agents []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			agents = append(agents, name)
		}
	}
	for _, ev := range r.TraceEvents {
		add(ev.AgentName)
		add(ev.Collaborator)
	}
	return agents
}
