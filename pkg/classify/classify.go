// Package classify assigns an intent class to a completed response so the
// delivery engine can route it to the right downstream endpoint. The
// classifier is deterministic and pure: term counting only, no external calls.
package classify

import (
	"strings"

	"github.com/revops-ai/relay/pkg/models"
)

// Curated term sets per intent class. Matching is case-insensitive over the
// union of response text and original query.
var termSets = map[models.IntentClass][]string{
	models.IntentDealAnalysis: {
		"deal", "opportunity", "close date", "win rate", "pipeline stage",
		"meddpicc", "negotiation", "proposal", "contract", "renewal",
		"churn risk", "forecast category", "commit", "upside", "closed won",
		"closed lost", "deal size", "acv", "arr",
	},
	models.IntentDataAnalysis: {
		"query", "sql", "warehouse", "table", "metric", "aggregate",
		"dashboard", "trend", "average", "median", "sum", "count",
		"percentage", "quarter over quarter", "year over year", "dataset",
		"segment", "cohort",
	},
	models.IntentLeadAnalysis: {
		"lead", "prospect", "mql", "sql lead", "scoring", "qualification",
		"outreach", "conversion rate", "funnel", "campaign", "inbound",
		"outbound", "demo request", "icp", "enrichment",
	},
}

// Classify scores the response and query against each term set and returns
// the best class. Ties break toward the smaller ordinal (deal < data < lead);
// zero hits everywhere falls through to general.
func Classify(responseText, originalQuery string) models.IntentClass {
	corpus := strings.ToLower(responseText + " " + originalQuery)

	best := models.IntentGeneral
	bestScore := 0

	// Iterating in ordinal order makes ties resolve to the smaller ordinal:
	// a later class must strictly beat the incumbent.
	for _, class := range models.AllIntentClasses() {
		terms, ok := termSets[class]
		if !ok {
			continue
		}
		score := 0
		for _, term := range terms {
			score += strings.Count(corpus, term)
		}
		if score > bestScore {
			best = class
			bestScore = score
		}
	}

	if bestScore == 0 {
		return models.IntentGeneral
	}
	return best
}
