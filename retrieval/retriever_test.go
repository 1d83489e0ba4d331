package retrieval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newTestRetriever(store ChunkStore) *Retriever {
	return New(store, DefaultConfig(), zap.NewNop())
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := newTestRetriever(&fakeStore{})
	results := r.Retrieve(context.Background(), "", 5)
	if len(results) != 0 {
		t.Fatalf("empty query must return an empty list, got %d", len(results))
	}
	if results = r.Retrieve(context.Background(), "   \t ", 5); len(results) != 0 {
		t.Fatalf("blank query must return an empty list, got %d", len(results))
	}
}

func TestRetrieveFullTextScenario(t *testing.T) {
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "Section 420 IPC covers cheating and dishonest inducement of property.", Rank: 0.6, Source: "postgres:legal_document_chunks:d1:1"},
	}}
	r := newTestRetriever(store)

	results := r.Retrieve(context.Background(), "cheating property", 4)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Mode != ModeFullText {
		t.Errorf("expected mode %s, got %s", ModeFullText, results[0].Mode)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected nonzero score, got %f", results[0].Score)
	}
}

func TestRetrieveAliasExpansionSurfacesVariant(t *testing.T) {
	// Corpus knows only "Mukhtar Singh"; the query misspells the name.
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "Mukhtar Singh was granted anticipatory bail by the sessions court.", Source: "postgres:t:d1:1"},
		{DocID: "d2", ChunkID: 1, Text: "Mukhtiar Singh filed a revision petition."},
	}}
	r := newTestRetriever(store)

	results := r.Retrieve(context.Background(), "Mukhtiar Singh case", 5)
	if len(results) == 0 {
		t.Fatal("expected results for the misspelled name")
	}
	surfaced := false
	for _, res := range results {
		if strings.Contains(res.Text, "Mukhtar Singh") {
			surfaced = true
		}
	}
	if !surfaced {
		t.Fatalf("alias expansion should surface the original spelling, got %+v", results)
	}
}

func TestRetrieveCorrectSpellingKeepsRankedMode(t *testing.T) {
	// Both spellings are in the corpus, so the alias index links
	// mukhtar<->mukhtiar. A correctly spelled query must still win on the
	// ranked full-text tier; alias tokens may never demote it to a
	// fallback.
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "Mukhtar Singh was granted anticipatory bail by the sessions court.", Rank: 0.8},
		{DocID: "d2", ChunkID: 1, Text: "Mukhtiar Singh filed a revision petition."},
	}}
	r := newTestRetriever(store)

	results := r.Retrieve(context.Background(), "Mukhtar Singh bail", 5)
	if len(results) == 0 {
		t.Fatal("expected results for the correctly spelled name")
	}
	if results[0].Mode != ModeFullText {
		t.Fatalf("expected mode %s for an exact-spelling query, got %s", ModeFullText, results[0].Mode)
	}
	if !strings.Contains(results[0].Text, "anticipatory bail") {
		t.Errorf("expected the bail chunk first, got %+v", results[0])
	}
}

func TestRetrieveNoMatchFallsThroughToKeyword(t *testing.T) {
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "Quarterly grain output statistics for the northern districts."},
	}}
	r := newTestRetriever(store)

	results := r.Retrieve(context.Background(), "xyz123nonlegal", 5)
	if len(results) != 1 {
		t.Fatalf("expected the generic keyword-fallback singleton, got %d", len(results))
	}
	if results[0].Mode != ModeKeywordFallback {
		t.Errorf("expected mode %s, got %s", ModeKeywordFallback, results[0].Mode)
	}
	if results[0].Score != 0.0 {
		t.Errorf("generic fallback score = %f, want 0.0", results[0].Score)
	}
}

func TestRetrieveStoreUnreachable(t *testing.T) {
	r := newTestRetriever(downStore())

	results := r.Retrieve(context.Background(), "property dispute with my landlord", 5)
	if len(results) == 0 {
		t.Fatal("retrieve must not return empty when the store is down")
	}
	for _, res := range results {
		if res.Mode != ModeKeywordFallback {
			t.Errorf("expected only keyword fallback results, got %s", res.Mode)
		}
	}
}

func TestRetrieveCriminalIntentExcludesTax(t *testing.T) {
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "The police arrested the accused for assault; the tax tribunal was not involved.", Rank: 0.9},
		{DocID: "d2", ChunkID: 1, Text: "The police arrested the accused for assault near the market.", Rank: 0.5},
	}}
	r := newTestRetriever(store)

	results := r.Retrieve(context.Background(), "police assault arrest", 5)
	for _, res := range results {
		if res.Mode != ModeKeywordFallback && strings.Contains(strings.ToLower(res.Text), "tax") {
			t.Fatalf("tax chunk leaked through criminal-intent filter: %+v", res)
		}
	}
}

func TestRetrieveNonEmptyGuarantee(t *testing.T) {
	stores := map[string]ChunkStore{
		"empty corpus":  &fakeStore{},
		"store down":    downStore(),
		"normal corpus": &fakeStore{chunks: []Chunk{{DocID: "d", ChunkID: 1, Text: "Bail conditions under CrPC."}}},
	}
	for name, store := range stores {
		r := newTestRetriever(store)
		rapid.Check(t, func(rt *rapid.T) {
			query := rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}`).Draw(rt, "query")
			topK := rapid.IntRange(1, 10).Draw(rt, "topK")

			results := r.Retrieve(context.Background(), query, topK)
			if strings.TrimSpace(query) == "" {
				if len(results) != 0 {
					rt.Fatalf("[%s] blank query returned %d results", name, len(results))
				}
				return
			}
			if len(results) < 1 || len(results) > topK {
				rt.Fatalf("[%s] result count %d outside [1, %d]", name, len(results), topK)
			}
		})
	}
}

func TestRetrieveConcurrent(t *testing.T) {
	store := &fakeStore{chunks: []Chunk{
		{DocID: "d1", ChunkID: 1, Text: "Mukhtar Singh was granted bail."},
		{DocID: "d2", ChunkID: 1, Text: "Property tax appeals go to the municipal tribunal."},
	}}
	r := newTestRetriever(store)

	// The alias index builds on first use; concurrent retrievals must not
	// race the build or each other. Run with -race.
	var wg sync.WaitGroup
	queries := []string{"Mukhtar Singh bail", "property tax appeal", "divorce custody", "xyz"}
	for i := 0; i < 8; i++ {
		for _, q := range queries {
			wg.Add(1)
			go func(q string) {
				defer wg.Done()
				if results := r.Retrieve(context.Background(), q, 3); len(results) == 0 {
					t.Errorf("Retrieve(%q) returned empty", q)
				}
			}(q)
		}
	}
	wg.Wait()
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	r := newTestRetriever(&fakeStore{})
	results := r.Retrieve(context.Background(), "court case", 0)
	if len(results) == 0 || len(results) > DefaultTopK {
		t.Fatalf("non-positive topK should fall back to default cap, got %d", len(results))
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	retrievals []Mode
	fallbacks  []string
}

func (o *recordingObserver) ObserveRetrieval(mode Mode, d time.Duration, results int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retrievals = append(o.retrievals, mode)
}

func (o *recordingObserver) ObserveFallback(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, stage)
}

func TestRetrieveReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	r := New(downStore(), DefaultConfig(), zap.NewNop(), WithObserver(obs))

	r.Retrieve(context.Background(), "court case", 3)

	if len(obs.retrievals) != 1 || obs.retrievals[0] != ModeKeywordFallback {
		t.Fatalf("expected one keyword_fallback retrieval observation, got %v", obs.retrievals)
	}
	if len(obs.fallbacks) != 2 {
		t.Fatalf("expected fuzzy and keyword fallback stages observed, got %v", obs.fallbacks)
	}
}
