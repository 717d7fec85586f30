// Package postgres provides PostgreSQL implementations of the store
// interfaces. The job store doubles as the durable queue: dequeue uses
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same job,
// and a partial unique index on the identity key enforces the
// single-active-job invariant across processes.
//
// All implementations accept a store.DBTX, so they work over both a
// connection pool and a transaction.
package postgres
