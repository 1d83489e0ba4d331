// Package chat orchestrates the question-answering pipeline: classify
// the issue, retrieve legal context, compose a prompt, generate an
// answer and persist the exchange.
package chat

import "strings"

// CategoryGeneral is assigned when no category keyword matches.
const CategoryGeneral = "General"

type categoryRule struct {
	name     string
	keywords []string
}

// Ordered; the first matching category wins.
var categoryRules = []categoryRule{
	{"Criminal", []string{"murder", "crime", "theft", "assault", "police", "arrest", "bail", "violence"}},
	{"Civil", []string{"property", "tenant", "dispute", "agreement", "ownership", "contract", "possession"}},
	{"Corporate", []string{"company", "director", "shareholder", "startup", "business", "merger", "ipo"}},
	{"Tax", []string{"tax", "gst", "income", "deduction", "penalty", "assessment"}},
	{"Family", []string{"divorce", "marriage", "custody", "child", "maintenance", "alimony"}},
	{"Labor", []string{"employee", "employment", "salary", "grievance", "termination", "wages"}},
	{"Constitutional", []string{"fundamental rights", "citizen", "constitution", "violation"}},
}

// Categorize assigns an issue category to the query by keyword match.
func Categorize(query string) string {
	q := strings.ToLower(query)
	for _, rule := range categoryRules {
		for _, word := range rule.keywords {
			if strings.Contains(q, word) {
				return rule.name
			}
		}
	}
	return CategoryGeneral
}
