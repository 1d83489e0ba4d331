/*
Package metrics provides Prometheus-based metrics collection for the
service, covering HTTP, retrieval, LLM, cache and database dimensions.

The Collector registers every metric through promauto on a caller-supplied
Registerer, grouped under a single namespace. It implements
retrieval.Observer so the retrieval engine reports strategy outcomes and
fallback engagements without importing Prometheus itself.
*/
package metrics
