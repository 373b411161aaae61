package chunker

import "strings"

// Closed set of section labels.
const (
	SectionMDA        = "MD&A"
	SectionFinancials = "Financial Statements"
	SectionRisk       = "Risk Factors"
	SectionBusiness   = "Business Overview"
	SectionOther      = "Other"
)

// sectionRules are evaluated in priority order; the first rule whose
// keyword appears in the chunk wins.
var sectionRules = []struct {
	label    string
	keywords []string
}{
	{SectionMDA, []string{"management discussion", "md&a", "operating results"}},
	{SectionFinancials, []string{"consolidated statements", "balance sheet", "income statement", "cash flow"}},
	{SectionRisk, []string{"risk factors", "risks and uncertainties"}},
	{SectionBusiness, []string{"business overview", "products and services", "market"}},
}

// DetectSection labels a chunk by case-insensitive keyword containment.
// This is a heuristic over chunk content, not an authoritative
// classification of where the text sat in the filing.
func DetectSection(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range sectionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return SectionOther
}
