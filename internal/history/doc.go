// Package history keeps a durable ledger of completed, skipped, and failed
// normalization jobs in a local SQLite database.
package history
