package retrieval

import (
	"context"
	"errors"
	"strings"
)

// fakeStore is an in-memory ChunkStore for tests. Individual strategies can
// be forced to fail or muted to exercise the cascade.
type fakeStore struct {
	chunks []Chunk

	failFullText  bool
	failSubstring bool
	failLabelMeta bool
	failSample    bool

	// disableFullText makes the fts strategy return zero rows even when a
	// substring match exists, to simulate a corpus where only ilike hits.
	disableFullText bool

	calls []string
}

var errStoreDown = errors.New("store unreachable")

func (s *fakeStore) SearchFullText(ctx context.Context, query string, limit int) ([]Chunk, error) {
	s.calls = append(s.calls, "fts")
	if s.failFullText {
		return nil, errStoreDown
	}
	if s.disableFullText {
		return nil, nil
	}
	// Crude AND-of-terms match standing in for plainto_tsquery.
	var out []Chunk
	for _, c := range s.chunks {
		text := strings.ToLower(c.Text)
		all := true
		for _, tok := range Tokenize(query) {
			if !strings.Contains(text, tok) {
				all = false
				break
			}
		}
		if all {
			scored := c
			if scored.Rank == 0 {
				scored.Rank = 0.5
			}
			out = append(out, scored)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SearchFullTextAny(ctx context.Context, terms []string, limit int) ([]Chunk, error) {
	s.calls = append(s.calls, "fts_any")
	if s.failFullText {
		return nil, errStoreDown
	}
	if s.disableFullText {
		return nil, nil
	}
	// Any-of-terms match standing in for the OR tsquery.
	var out []Chunk
	for _, c := range s.chunks {
		text := strings.ToLower(c.Text)
		for _, term := range terms {
			if strings.Contains(text, strings.ToLower(term)) {
				scored := c
				if scored.Rank == 0 {
					scored.Rank = 0.5
				}
				out = append(out, scored)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SearchSubstring(ctx context.Context, query string, limit int) ([]Chunk, error) {
	s.calls = append(s.calls, "ilike")
	if s.failSubstring {
		return nil, errStoreDown
	}
	var out []Chunk
	for _, c := range s.chunks {
		if strings.Contains(strings.ToLower(c.Text), strings.ToLower(query)) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SearchLabelMeta(ctx context.Context, query string, limit int) ([]Chunk, error) {
	s.calls = append(s.calls, "label_meta")
	if s.failLabelMeta {
		return nil, errStoreDown
	}
	var out []Chunk
	for _, c := range s.chunks {
		if strings.Contains(strings.ToLower(c.PredictedLabel), strings.ToLower(query)) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) Sample(ctx context.Context, limit int) ([]Chunk, error) {
	s.calls = append(s.calls, "sample")
	if s.failSample {
		return nil, errStoreDown
	}
	if len(s.chunks) > limit {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

// downStore fails every call, simulating a completely unreachable store.
func downStore() *fakeStore {
	return &fakeStore{
		failFullText:  true,
		failSubstring: true,
		failLabelMeta: true,
		failSample:    true,
	}
}
