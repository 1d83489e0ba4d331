package retrieval

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultAliasSampleLimit bounds how many chunks the builder scans.
	DefaultAliasSampleLimit = 5000

	// DefaultAliasThreshold is the 0-100 name-similarity score at or above
	// which two names are linked.
	DefaultAliasThreshold = 85.0
)

// namePhrasePattern extracts proper-name candidates: two consecutive
// capitalized words of three or more letters.
var namePhrasePattern = regexp.MustCompile(`[A-Z][a-z]{2,}\s[A-Z][a-z]{2,}`)

// AliasIndex is a symmetric mapping from a normalized name to the set of
// normalized names considered interchangeable with it (spelling/phonetic
// variants). It is built at most once per process lifetime from a bounded
// corpus sample and is read-only afterwards.
type AliasIndex struct {
	store       ChunkStore
	sampleLimit int
	threshold   float64
	logger      *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	built   bool
	aliases map[string]map[string]struct{}
}

// AliasConfig configures the alias index builder.
type AliasConfig struct {
	// SampleLimit caps the corpus sample scanned for name candidates.
	SampleLimit int `yaml:"sample_limit" json:"sample_limit"`

	// Threshold is the inclusion similarity on the 0-100 scale.
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultAliasConfig returns the standard builder settings.
func DefaultAliasConfig() AliasConfig {
	return AliasConfig{
		SampleLimit: DefaultAliasSampleLimit,
		Threshold:   DefaultAliasThreshold,
	}
}

// NewAliasIndex creates an unbuilt index. The first call to Ensure builds it.
func NewAliasIndex(store ChunkStore, config AliasConfig, logger *zap.Logger) *AliasIndex {
	if config.SampleLimit <= 0 {
		config.SampleLimit = DefaultAliasSampleLimit
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultAliasThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AliasIndex{
		store:       store,
		sampleLimit: config.SampleLimit,
		threshold:   config.Threshold,
		logger:      logger.With(zap.String("component", "alias_index")),
		aliases:     make(map[string]map[string]struct{}),
	}
}

// Ensure builds the index on first use. Concurrent callers share a single
// build via singleflight. A build failure is logged and leaves the index
// empty; it is still marked built so retrieval is never blocked on a store
// that cannot serve the sample.
func (a *AliasIndex) Ensure(ctx context.Context) {
	a.mu.RLock()
	built := a.built
	a.mu.RUnlock()
	if built {
		return
	}

	a.group.Do("build", func() (any, error) {
		a.mu.RLock()
		built := a.built
		a.mu.RUnlock()
		if built {
			return nil, nil
		}

		aliases := a.build(ctx)

		a.mu.Lock()
		a.aliases = aliases
		a.built = true
		a.mu.Unlock()
		return nil, nil
	})
}

// build scans the corpus sample and clusters name candidates by similarity.
func (a *AliasIndex) build(ctx context.Context) map[string]map[string]struct{} {
	aliases := make(map[string]map[string]struct{})

	chunks, err := a.store.Sample(ctx, a.sampleLimit)
	if err != nil {
		a.logger.Warn("alias build skipped, corpus sample unavailable", zap.Error(err))
		return aliases
	}

	seen := make(map[string]struct{})
	var names []string
	for _, chunk := range chunks {
		for _, phrase := range namePhrasePattern.FindAllString(chunk.Text, -1) {
			name := NormalizeName(phrase)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	// O(n^2) over the candidate set, bounded by the chunk sample. This must
	// never run against the full corpus or per query.
	pairs := 0
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if nameSimilarity(names[i], names[j]) >= a.threshold {
				link(aliases, names[i], names[j])
				pairs++
			}
		}
	}

	a.logger.Info("alias index built",
		zap.Int("chunks_sampled", len(chunks)),
		zap.Int("name_candidates", len(names)),
		zap.Int("alias_pairs", pairs))
	return aliases
}

// link inserts both directions of an alias pair. A name never aliases itself.
func link(aliases map[string]map[string]struct{}, a, b string) {
	if a == b {
		return
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set, ok := aliases[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			aliases[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

// AliasesFor returns the sorted aliases of a normalized name, nil when it
// has none.
func (a *AliasIndex) AliasesFor(name string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	set, ok := a.aliases[NormalizeName(name)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for alias := range set {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of names that have at least one alias.
func (a *AliasIndex) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.aliases)
}

// snapshot returns the live alias map for read-only iteration under the
// caller's awareness that it must not be mutated.
func (a *AliasIndex) snapshot() map[string]map[string]struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aliases
}
