// Package store defines the persistence interfaces consumed by the pipeline
// and services: the durable job queue, the receipt ledger, and transaction
// helpers. Concrete implementations live under internal/platform.
package store
