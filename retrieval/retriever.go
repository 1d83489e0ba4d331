package retrieval

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/vakeel/vakeel/retrieval"

// DefaultTopK is used when the caller passes a non-positive result cap.
const DefaultTopK = 5

// Observer receives retrieval outcomes for metrics collection. All methods
// must be safe for concurrent use.
type Observer interface {
	ObserveRetrieval(mode Mode, duration time.Duration, results int)
	ObserveFallback(stage string)
}

// nopObserver is used when no collector is wired in.
type nopObserver struct{}

func (nopObserver) ObserveRetrieval(Mode, time.Duration, int) {}
func (nopObserver) ObserveFallback(string)                    {}

// Config configures a Retriever.
type Config struct {
	// KBLabel selects which domain keyword list applies.
	KBLabel string `yaml:"kb_label" json:"kb_label"`

	// Alias configures the alias index builder.
	Alias AliasConfig `yaml:"alias" json:"alias"`

	// FuzzyScanLimit caps the fuzzy fallback's corpus sample.
	FuzzyScanLimit int `yaml:"fuzzy_scan_limit" json:"fuzzy_scan_limit"`

	// Debug enables per-chunk score traces in the fuzzy fallback.
	Debug bool `yaml:"debug" json:"debug"`
}

// DefaultConfig returns the standard retriever settings.
func DefaultConfig() Config {
	return Config{
		KBLabel:        "legal_chunks",
		Alias:          DefaultAliasConfig(),
		FuzzyScanLimit: DefaultFuzzyScanLimit,
	}
}

// Retriever is the retrieval engine. It is stateless per query; the only
// shared state is the alias index, which is effectively immutable once
// built. Safe for concurrent use.
//
// Retrieve is synchronous and has no internal timeout: the caller bounds
// the worst case (notably the fuzzy fallback's bounded scan) through the
// context deadline.
type Retriever struct {
	store    ChunkStore
	domain   DomainConfig
	aliases  *AliasIndex
	tiered   *tieredRetriever
	filter   *relevanceFilter
	fuzzy    *fuzzyFallback
	keyword  *keywordFallback
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithObserver wires a metrics collector into the retriever.
func WithObserver(o Observer) Option {
	return func(r *Retriever) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithDomainConfig replaces the built-in domain vocabulary.
func WithDomainConfig(domain DomainConfig) Option {
	return func(r *Retriever) {
		r.domain = domain
	}
}

// New creates a Retriever on top of a chunk store. The alias index is built
// lazily on the first Retrieve call.
func New(store ChunkStore, config Config, logger *zap.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KBLabel == "" {
		config.KBLabel = "default"
	}

	r := &Retriever{
		store:    store,
		domain:   DefaultDomainConfig(),
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With(zap.String("component", "retriever"), zap.String("kb_label", config.KBLabel)),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.aliases = NewAliasIndex(store, config.Alias, logger)
	r.tiered = newTieredRetriever(store, logger)
	r.filter = newRelevanceFilter(r.domain, logger)
	r.fuzzy = newFuzzyFallback(store, r.domain, config.KBLabel, config.FuzzyScanLimit, config.Debug, logger)
	r.keyword = newKeywordFallback(r.domain, config.KBLabel)
	return r
}

// Aliases exposes the alias index, mainly for startup warm-up and tests.
func (r *Retriever) Aliases() *AliasIndex { return r.aliases }

// Retrieve returns the best-matching chunks for a query, at most topK of
// them. It never returns an error and, for a non-empty query, never an
// empty list: every failure degrades to the next strategy and finally to
// the keyword fallback. An empty or blank query returns an empty list.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []Result {
	if strings.TrimSpace(query) == "" {
		return []Result{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := r.tracer.Start(ctx, "retrieval.Retrieve",
		trace.WithAttributes(attribute.Int("retrieval.top_k", topK)))
	defer span.End()

	start := time.Now()
	r.aliases.Ensure(ctx)

	expanded := r.aliases.Expand(query)
	if len(expanded.Added) > 0 {
		r.logger.Debug("query expanded",
			zap.Strings("added_tokens", expanded.Added))
	}

	results := r.tiered.search(ctx, expanded, topK)
	results = r.filter.apply(query, expanded, results, topK)

	if len(results) == 0 {
		r.observer.ObserveFallback("adaptive_fuzzy")
		results = r.fuzzy.search(ctx, query, topK)
	}
	if len(results) == 0 {
		r.observer.ObserveFallback("keyword")
		results = r.keyword.respond(query, topK)
	}

	mode := results[0].Mode
	span.SetAttributes(
		attribute.String("retrieval.mode", string(mode)),
		attribute.Int("retrieval.results", len(results)),
	)
	r.observer.ObserveRetrieval(mode, time.Since(start), len(results))
	r.logger.Info("retrieval finished",
		zap.String("mode", string(mode)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results
}
