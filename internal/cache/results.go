package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vakeel/vakeel/retrieval"
)

// Recorder receives cache hit/miss notifications. *metrics.Collector
// satisfies it.
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string)  {}
func (nopRecorder) RecordCacheMiss(string) {}

// ResultCache caches retrieval results per normalized query. All failures
// degrade to a miss so callers always fall back to live retrieval.
type ResultCache struct {
	manager  *Manager
	kbLabel  string
	ttl      time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// NewResultCache wraps manager with retrieval-result semantics.
func NewResultCache(manager *Manager, kbLabel string, ttl time.Duration, recorder Recorder, logger *zap.Logger) *ResultCache {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ResultCache{
		manager:  manager,
		kbLabel:  kbLabel,
		ttl:      ttl,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "result_cache")),
	}
}

// Key derives a stable cache key from the query and result cap. Queries
// differing only in case or surrounding whitespace share an entry.
func (c *ResultCache) Key(query string, topK int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", c.kbLabel, normalized, topK)))
	return "retrieval:" + hex.EncodeToString(sum[:16])
}

// Get returns cached results for the query, or ok=false on miss or error.
func (c *ResultCache) Get(ctx context.Context, query string, topK int) ([]retrieval.Result, bool) {
	var results []retrieval.Result
	err := c.manager.GetJSON(ctx, c.Key(query, topK), &results)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("result cache read failed", zap.Error(err))
		}
		c.recorder.RecordCacheMiss("retrieval")
		return nil, false
	}

	c.recorder.RecordCacheHit("retrieval")
	return results, true
}

// Put stores results for the query. Errors are logged, never returned.
func (c *ResultCache) Put(ctx context.Context, query string, topK int, results []retrieval.Result) {
	if len(results) == 0 {
		return
	}
	if err := c.manager.SetJSON(ctx, c.Key(query, topK), results, c.ttl); err != nil {
		c.logger.Warn("result cache write failed", zap.Error(err))
	}
}
