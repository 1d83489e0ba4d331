package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize lowercases text and splits it into alphanumeric word tokens.
// Deterministic and locale-independent: only ASCII-style letter/digit runs
// count as tokens, everything else is a separator.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// NormalizeName reduces a name-like phrase to a canonical comparison form:
// lowercase, alphanumeric and single spaces only.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence: the cut backs up to the nearest rune boundary.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// lemmatize applies light rule-based suffix stripping. Only the fuzzy
// fallback tokenizer uses it; the rest of the pipeline works on raw tokens.
func lemmatize(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 5 && strings.HasSuffix(token, "ing"):
		return token[:len(token)-3]
	case len(token) > 4 && strings.HasSuffix(token, "ed"):
		return token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "es") && !strings.HasSuffix(token, "ses"):
		return token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		return token[:len(token)-1]
	default:
		return token
	}
}

// lemmatizedTokens tokenizes text and lemmatizes every token, dropping
// duplicates while preserving first-seen order.
func lemmatizedTokens(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(text) {
		lemma := lemmatize(tok)
		if _, ok := seen[lemma]; ok {
			continue
		}
		seen[lemma] = struct{}{}
		out = append(out, lemma)
	}
	return out
}
