/*
Package cache provides Redis-backed caching for retrieval results.

Manager wraps the go-redis client with JSON helpers, a background health
check loop and graceful shutdown; it exposes the ErrCacheMiss sentinel
with IsCacheMiss for miss detection. ResultCache layers retrieval-result
semantics on top: keys are derived from the normalized query and result
cap, and every Redis failure degrades to a cache miss so callers always
fall back to live retrieval.
*/
package cache
