/*
Package retrieval implements the cascading multi-strategy search engine that
backs the legal question-answering pipeline.

The engine finds relevant text chunks in a relational store without any
vector/embedding index. An incoming query flows through the stages below,
each one only engaged when the previous stage produced nothing usable:

  - query expansion against a corpus-learned name alias index
  - tiered relational search (ranked full-text, substring, label/metadata)
    on the raw query, with an OR-widened full-text pass for alias tokens
    when the raw query misses
  - relevance filtering (sequence similarity, token overlap, domain intent)
  - adaptive fuzzy fallback over a bounded corpus sample
  - static keyword fallback that can never come back empty

The sole public entry point is [Retriever.Retrieve]. It never returns an
error: store connectivity failures, malformed search input and alias-build
failures are all absorbed and degrade to the next stage, so the caller is
guaranteed a non-empty result list for any non-empty query.

The alias index is built lazily on first use from a bounded sample of the
corpus, guarded so concurrent first calls share a single build. After that
it is read-only and safe for concurrent retrievals.
*/
package retrieval
