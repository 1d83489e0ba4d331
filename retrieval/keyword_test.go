package retrieval

import (
	"strings"
	"testing"
)

func TestKeywordFallbackMatchesDomainKeywords(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "legal_chunks")

	results := k.respond("how is property tax calculated", 5)
	if len(results) != 2 {
		t.Fatalf("expected pseudo-results for tax and property, got %d", len(results))
	}
	for _, r := range results {
		if r.Mode != ModeKeywordFallback {
			t.Errorf("expected mode %s, got %s", ModeKeywordFallback, r.Mode)
		}
		if r.Score != keywordMatchScore {
			t.Errorf("expected score %v, got %v", keywordMatchScore, r.Score)
		}
		if r.Text == "" {
			t.Error("pseudo-result text must not be empty")
		}
	}
}

func TestKeywordFallbackTaxTemplate(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "legal_chunks")

	results := k.respond("tax on agricultural income", 5)
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
	if !strings.Contains(results[0].Text, `"tax"`) {
		t.Errorf("templated text should reference the keyword, got %q", results[0].Text)
	}
}

func TestKeywordFallbackGenericSingleton(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "legal_chunks")

	results := k.respond("xyz123nonlegal", 5)
	if len(results) != 1 {
		t.Fatalf("expected the generic singleton, got %d results", len(results))
	}
	r := results[0]
	if r.Score != 0.0 {
		t.Errorf("generic result score = %v, want 0.0", r.Score)
	}
	if r.Mode != ModeKeywordFallback {
		t.Errorf("mode = %s, want %s", r.Mode, ModeKeywordFallback)
	}
	if !strings.Contains(r.Text, "xyz123nonlegal") {
		t.Errorf("generic text should echo the query, got %q", r.Text)
	}
}

func TestKeywordFallbackUnknownLabelUsesDefaultList(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "mystery_kb")

	results := k.respond("my rights after a complaint to the court", 10)
	// rights, complaint and court all come from the default list.
	if len(results) != 3 {
		t.Fatalf("expected 3 keyword matches from the default list, got %d", len(results))
	}
}

func TestKeywordFallbackRespectsTopK(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "legal_chunks")
	results := k.respond("tax property contract criminal family", 2)
	if len(results) != 2 {
		t.Fatalf("expected topK cap of 2, got %d", len(results))
	}
}

func TestKeywordFallbackNeverEmpty(t *testing.T) {
	k := newKeywordFallback(DefaultDomainConfig(), "legal_chunks")
	for _, query := range []string{"", "   ", "no overlap whatsoever zz"} {
		if results := k.respond(query, 1); len(results) == 0 {
			t.Fatalf("respond(%q) returned empty", query)
		}
	}
}
