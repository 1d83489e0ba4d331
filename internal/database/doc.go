/*
Package database manages gorm connections for the service.

Open selects the dialector from configuration: Postgres in production,
where full-text search is available, or sqlite for local development.
PoolManager wraps the connection with pool limits, a background health
check loop and transaction helpers; WithTransactionRetry retries
transient failures such as deadlocks and serialization errors with
exponential backoff.
*/
package database
