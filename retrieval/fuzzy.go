package retrieval

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultFuzzyScanLimit caps the corpus sample the fallback rescans.
	DefaultFuzzyScanLimit = 20000

	// fuzzyKeepThreshold is the minimum score a chunk must exceed.
	fuzzyKeepThreshold = 3.0

	// fuzzyTextWindow bounds the chunk prefix used for the fuzzy ratio.
	fuzzyTextWindow = 800

	// Short queries lean harder on the fuzzy ratio, long ones on overlap.
	shortQueryTokenCount = 10
	shortQueryWeight     = 6.0
	longQueryWeight      = 4.0

	// Name-phrase bonuses.
	bonusFullPhrase    = 3.0
	bonusPartialPhrase = 1.8
	bonusNameTokens    = 1.5
)

var (
	// capitalizedPhrasePattern catches capitalized sequences of two or
	// more words in the original, non-normalized query text.
	capitalizedPhrasePattern = regexp.MustCompile(`[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+`)

	// lowercasePairPattern catches lowercase two-word name candidates.
	lowercasePairPattern = regexp.MustCompile(`\b[a-z]{3,}\s+[a-z]{3,}\b`)
)

// fuzzyFallback rescans a bounded corpus sample with token-overlap plus
// fuzzy-ratio scoring. It exists because the corpus spells proper names
// inconsistently and carries sparse structured metadata, so literal SQL
// predicates miss matches this recovers. It only runs when the tiered
// retriever and filter produced nothing, so the bounded table scan stays a
// cache-miss cost, not a per-query one.
type fuzzyFallback struct {
	store     ChunkStore
	domain    DomainConfig
	kbLabel   string
	scanLimit int
	debug     bool
	logger    *zap.Logger
}

func newFuzzyFallback(store ChunkStore, domain DomainConfig, kbLabel string, scanLimit int, debug bool, logger *zap.Logger) *fuzzyFallback {
	if scanLimit <= 0 {
		scanLimit = DefaultFuzzyScanLimit
	}
	return &fuzzyFallback{
		store:     store,
		domain:    domain,
		kbLabel:   kbLabel,
		scanLimit: scanLimit,
		debug:     debug,
		logger:    logger.With(zap.String("component", "fuzzy_fallback")),
	}
}

// search scores every sampled chunk against the query and returns those
// above the keep threshold, best first, capped to topK. A scan failure
// returns nil so the caller falls through to the keyword fallback.
func (f *fuzzyFallback) search(ctx context.Context, rawQuery string, topK int) []Result {
	queryLower := strings.ToLower(rawQuery)
	tokens := lemmatizedTokens(rawQuery)
	phrases := extractNamePhrases(rawQuery)

	intent := f.domain.QueryIntent(rawQuery)
	augmented := augmentTokens(tokens, f.domain.Topics[intent], f.domain.KeywordsFor(f.kbLabel))

	weight := longQueryWeight
	if len(augmented) < shortQueryTokenCount {
		weight = shortQueryWeight
	}

	chunks, err := f.store.Sample(ctx, f.scanLimit)
	if err != nil {
		f.logger.Warn("fuzzy scan failed", zap.Error(err))
		return nil
	}

	nameTokens := phraseTokens(phrases)
	var results []Result
	for _, chunk := range chunks {
		score := f.scoreChunk(chunk, queryLower, augmented, weight, phrases, nameTokens)
		if score <= fuzzyKeepThreshold {
			continue
		}
		results = append(results, Result{
			Text:           chunk.Text,
			PredictedLabel: chunk.PredictedLabel,
			Source:         chunk.Source,
			Metadata:       chunk.Metadata,
			Score:          score,
			Mode:           ModeAdaptiveFuzzy,
			DocID:          chunk.DocID,
			ChunkID:        chunk.ChunkID,
		})
	}

	sortResultsByScore(results)
	results = capResults(results, topK)

	f.logger.Info("fuzzy fallback finished",
		zap.String("intent", intent),
		zap.Int("chunks_scanned", len(chunks)),
		zap.Int("kept", len(results)))
	return results
}

// scoreChunk computes overlap + ratio*weight plus the name-phrase bonuses.
func (f *fuzzyFallback) scoreChunk(chunk Chunk, queryLower string, augmented []string, weight float64, phrases []string, nameTokens map[string]struct{}) float64 {
	textLower := strings.ToLower(chunk.Text)
	textTokens := TokenSet(chunk.Text)

	overlap := 0
	for _, tok := range augmented {
		if _, ok := textTokens[tok]; ok {
			overlap++
		}
	}

	window := truncateRunes(textLower, fuzzyTextWindow)
	ratio := similarityRatio(window, queryLower)

	score := float64(overlap) + ratio*weight
	score += phraseBonus(phrases, textLower)

	distinct := 0
	for tok := range nameTokens {
		if _, ok := textTokens[tok]; ok {
			distinct++
		}
	}
	if distinct >= 2 {
		score += bonusNameTokens
	}

	if f.debug {
		f.logger.Debug("fuzzy chunk score",
			zap.String("doc_id", chunk.DocID),
			zap.Int("chunk_id", chunk.ChunkID),
			zap.Int("overlap", overlap),
			zap.Float64("ratio", ratio),
			zap.Float64("score", score))
	}
	return score
}

// phraseBonus rewards chunks containing extracted name phrases: full credit
// when every word of a phrase appears, partial when only some do.
func phraseBonus(phrases []string, textLower string) float64 {
	bonus := 0.0
	for _, phrase := range phrases {
		words := Tokenize(phrase)
		if len(words) == 0 {
			continue
		}
		matched := 0
		for _, w := range words {
			if strings.Contains(textLower, w) {
				matched++
			}
		}
		switch {
		case matched == len(words):
			bonus += bonusFullPhrase
		case matched > 0:
			bonus += bonusPartialPhrase
		}
	}
	return bonus
}

// extractNamePhrases pulls name-phrase candidates out of the original,
// non-normalized query text.
func extractNamePhrases(rawQuery string) []string {
	seen := make(map[string]struct{})
	var phrases []string
	add := func(p string) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}
	for _, p := range capitalizedPhrasePattern.FindAllString(rawQuery, -1) {
		add(p)
	}
	for _, p := range lowercasePairPattern.FindAllString(rawQuery, -1) {
		add(p)
	}
	return phrases
}

// phraseTokens flattens phrases into the distinct name tokens they contain.
func phraseTokens(phrases []string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, phrase := range phrases {
		for _, tok := range Tokenize(phrase) {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

// augmentTokens appends topic and domain keywords to the query tokens,
// deduplicated, original order first.
func augmentTokens(tokens []string, topicKeywords, domainKeywords []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens)+len(topicKeywords)+len(domainKeywords))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, extra := range [][]string{topicKeywords, domainKeywords} {
		for _, kw := range extra {
			kw = strings.ToLower(kw)
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}
