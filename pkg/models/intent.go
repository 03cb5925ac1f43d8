package models

// IntentClass is the category assigned by the response classifier, used to
// select a delivery target.
type IntentClass string

// Intent classes. The declaration order is the fixed ordinal order used for
// classifier tie-breaks: deal < data < lead < general.
const (
	IntentDealAnalysis IntentClass = "deal_analysis"
	IntentDataAnalysis IntentClass = "data_analysis"
	IntentLeadAnalysis IntentClass = "lead_analysis"
	IntentGeneral      IntentClass = "general"
)

var intentOrdinals = map[IntentClass]int{
	IntentDealAnalysis: 0,
	IntentDataAnalysis: 1,
	IntentLeadAnalysis: 2,
	IntentGeneral:      3,
}

// Ordinal returns the fixed tie-break position of the class. Unknown classes
// sort last.
func (c IntentClass) Ordinal() int {
	if n, ok := intentOrdinals[c]; ok {
		return n
	}
	return len(intentOrdinals)
}

// Valid reports whether c is one of the four known classes.
func (c IntentClass) Valid() bool {
	_, ok := intentOrdinals[c]
	return ok
}

// AllIntentClasses returns the classes in ordinal order.
func AllIntentClasses() []IntentClass {
	return []IntentClass{IntentDealAnalysis, IntentDataAnalysis, IntentLeadAnalysis, IntentGeneral}
}
