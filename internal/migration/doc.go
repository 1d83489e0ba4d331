/*
Package migration manages the Postgres schema with golang-migrate.

The SQL files are embedded via embed.FS and served through the iofs
source driver. Two migrations define the corpus and history tables:
legal_document_chunks carries a GIN index on to_tsvector('english', text)
for the full-text retrieval tier, and legal_chat_history stores answered
questions per session. CLI wraps the Migrator with formatted output for
the migrate subcommand.
*/
package migration
