package retrieval

import "strings"

// DomainConfig holds the static domain vocabulary: per-knowledge-base
// keyword lists and per-intent topic keyword lists. Loaded at startup and
// never mutated afterwards.
type DomainConfig struct {
	// Keywords maps a knowledge-base label to its domain keyword list.
	// The "default" entry applies to unknown labels.
	Keywords map[string][]string `yaml:"keywords" json:"keywords"`

	// Topics maps an intent domain to the topic keywords that signal it.
	Topics map[string][]string `yaml:"topics" json:"topics"`

	// Exclusions maps an intent domain to tokens that disqualify a
	// candidate chunk. Currently a single criminal/tax pair; kept as data
	// so broadening it is a config change.
	Exclusions map[string][]string `yaml:"exclusions" json:"exclusions"`
}

// IntentGeneral is returned when no topic keyword matches the query.
const IntentGeneral = "general"

// intentOrder fixes the priority in which intent domains are checked.
// The first domain with a matching topic keyword wins.
var intentOrder = []string{"criminal", "civil", "family", "corporate"}

// DefaultDomainConfig returns the built-in legal vocabulary.
func DefaultDomainConfig() DomainConfig {
	return DomainConfig{
		Keywords: map[string][]string{
			"digitized_docs": {"resolution", "tax", "property", "contract", "clause", "section", "act", "ordinance"},
			"legal_chunks":   {"tax", "property", "contract", "criminal", "family", "precedent", "appeal", "petition", "judgment"},
			"default":        {"law", "justice", "case", "crime", "petition", "court", "rights", "complaint"},
		},
		Topics: map[string][]string{
			"criminal":  {"threat", "murder", "assault", "violence", "harassment", "fir", "police", "crime"},
			"civil":     {"contract", "property", "agreement", "possession", "tenant", "tax", "building", "ownership"},
			"family":    {"divorce", "maintenance", "child", "custody", "marriage", "dowry"},
			"corporate": {"company", "business", "share", "director", "audit", "resolution", "meeting"},
		},
		Exclusions: map[string][]string{
			"criminal": {"tax"},
		},
	}
}

// QueryIntent classifies a query into one of the intent domains by scanning
// topic keywords in fixed priority order, or IntentGeneral when nothing
// matches.
func (c DomainConfig) QueryIntent(query string) string {
	q := strings.ToLower(query)
	for _, domain := range intentOrder {
		for _, kw := range c.Topics[domain] {
			if strings.Contains(q, kw) {
				return domain
			}
		}
	}
	return IntentGeneral
}

// KeywordsFor returns the domain keyword list for a knowledge-base label,
// falling back to the "default" list for unknown labels.
func (c DomainConfig) KeywordsFor(label string) []string {
	if kws, ok := c.Keywords[label]; ok {
		return kws
	}
	return c.Keywords["default"]
}

// ExcludedTokens returns the disqualifying tokens for an intent domain.
func (c DomainConfig) ExcludedTokens(intent string) []string {
	return c.Exclusions[intent]
}
