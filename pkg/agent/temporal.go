package agent

import (
	"fmt"
	"time"
)

// TemporalContext builds the preamble prepended to every user query so
// time-relative language ("last week", "this quarter") is interpretable by
// the agent. Pure function of the injected instant.
func TemporalContext(now time.Time) string {
	quarter := (int(now.Month())-1)/3 + 1
	return fmt.Sprintf(
		"Current context: today is %s (%s). Current quarter: Q%d %d. Current month: %s %d. Current year: %d.",
		now.Format("2006-01-02"),
		now.Weekday(),
		quarter, now.Year(),
		now.Month(), now.Year(),
		now.Year(),
	)
}

// PrependTemporalContext joins the preamble and the user query into the
// prompt sent to the agent.
func PrependTemporalContext(query string, now time.Time) string {
	return TemporalContext(now) + "\n\n" + query
}
