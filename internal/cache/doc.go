// Package cache provides the shared result cache backing the pipeline's
// deduplication layer, with Redis and in-memory implementations.
package cache
