package chat

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vakeel/vakeel/llm"
	"github.com/vakeel/vakeel/retrieval"
)

// DefaultPipelineTimeout bounds one full ask pipeline run.
const DefaultPipelineTimeout = 60 * time.Second

const sourcePreviewLength = 200

// Retriever is the retrieval engine surface the service needs.
// *retrieval.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieval.Result
}

// ResultCache caches retrieval results per query. Optional.
type ResultCache interface {
	Get(ctx context.Context, query string, topK int) ([]retrieval.Result, bool)
	Put(ctx context.Context, query string, topK int, results []retrieval.Result)
}

// Request is one question to answer.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k"`
}

// Source cites one retrieved passage backing the answer.
type Source struct {
	Source  string `json:"source"`
	Page    any    `json:"page,omitempty"`
	Preview string `json:"preview"`
}

// Response is the answered question with citations.
type Response struct {
	ChatID         string   `json:"chat_id"`
	Query          string   `json:"query"`
	Answer         string   `json:"answer"`
	Category       string   `json:"issue_category"`
	Confidence     float64  `json:"confidence"`
	RetrievalScore float64  `json:"retrieval_score"`
	RetrievalMode  string   `json:"retrieval_mode"`
	Sources        []Source `json:"context_sources"`
	ResponseTimeMS float64  `json:"response_time_ms"`
}

// Service runs the ask pipeline.
type Service struct {
	retriever Retriever
	provider  llm.Provider
	history   *HistoryStore
	prompts   *PromptBuilder
	cache     ResultCache
	timeout   time.Duration
	topK      int
	logger    *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithResultCache enables retrieval-result caching.
func WithResultCache(cache ResultCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithPipelineTimeout overrides the per-request deadline.
func WithPipelineTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithTopK sets the default result cap for requests that leave it unset.
func WithTopK(topK int) Option {
	return func(s *Service) { s.topK = topK }
}

// NewService wires the pipeline. history may be nil, in which case
// exchanges are not persisted and sessions carry no memory.
func NewService(retriever Retriever, provider llm.Provider, history *HistoryStore, prompts *PromptBuilder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		retriever: retriever,
		provider:  provider,
		history:   history,
		prompts:   prompts,
		timeout:   DefaultPipelineTimeout,
		topK:      retrieval.DefaultTopK,
		logger:    logger.With(zap.String("component", "chat")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers the question: classify, retrieve (cached when possible),
// compose, complete, persist. Only context expiry surfaces as an error;
// degraded dependencies produce a degraded answer instead.
func (s *Service) Ask(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chatID := uuid.NewString()
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	category := Categorize(req.Query)

	var memory string
	if s.history != nil {
		memory = s.history.Memory(ctx, req.SessionID)
	}

	results, cached := s.cachedRetrieve(ctx, req.Query, topK)

	retrievalScore := meanScore(results)
	mode := ""
	if len(results) > 0 {
		mode = string(results[0].Mode)
	}

	prompt := s.prompts.Build(req.Query, memory, results)
	completion, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		// Only a hard provider without the safe wrapper errors here.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("completion failed", zap.String("chat_id", chatID), zap.Error(err))
		completion = &llm.Completion{Answer: llm.FallbackAnswer, Confidence: 0.0}
	}

	confidence := round3((completion.Confidence + retrievalScore) / 2)
	sources := buildSources(results)

	if s.history != nil {
		record := &Record{
			ID:         chatID,
			SessionID:  req.SessionID,
			Question:   req.Query,
			Answer:     completion.Answer,
			Category:   category,
			Confidence: confidence,
		}
		if err := s.history.Save(ctx, record, sources); err != nil {
			s.logger.Warn("history save failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	s.logger.Info("question answered",
		zap.String("chat_id", chatID),
		zap.String("category", category),
		zap.String("mode", mode),
		zap.Bool("cache_hit", cached),
		zap.Float64("confidence", confidence),
		zap.Int("sources", len(sources)),
	)

	return &Response{
		ChatID:         chatID,
		Query:          req.Query,
		Answer:         completion.Answer,
		Category:       category,
		Confidence:     confidence,
		RetrievalScore: retrievalScore,
		RetrievalMode:  mode,
		Sources:        sources,
		ResponseTimeMS: round3(float64(time.Since(start).Microseconds()) / 1000),
	}, nil
}

// History returns recent exchanges for a session.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, sessionID, limit)
}

func (s *Service) cachedRetrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, bool) {
	if s.cache != nil {
		if results, ok := s.cache.Get(ctx, query, topK); ok {
			return results, true
		}
	}

	results := s.retriever.Retrieve(ctx, query, topK)

	// Keyword pseudo-results are query templates, not corpus hits; they
	// are cheap to recompute and not worth a cache entry.
	if s.cache != nil && len(results) > 0 && results[0].Mode != retrieval.ModeKeywordFallback {
		s.cache.Put(ctx, query, topK, results)
	}
	return results, false
}

func buildSources(results []retrieval.Result) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		preview := truncateUTF8(r.Text, sourcePreviewLength)
		var page any
		if r.Metadata != nil {
			page = r.Metadata["page_number"]
		}
		sources = append(sources, Source{
			Source:  r.Source,
			Page:    page,
			Preview: preview,
		})
	}
	return sources
}

// truncateUTF8 cuts s to at most max bytes on a rune boundary, so a
// multibyte character is never split mid-sequence.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func meanScore(results []retrieval.Result) float64 {
	if len(results) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
	}
	return round3(sum / float64(len(results)))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
