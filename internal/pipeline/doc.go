// Package pipeline implements the asynchronous job pipeline between request
// intake and the external analysis service: identity hashing, the
// idempotency layer, the worker pool over the durable queue, the shared
// token-bucket rate limiter, and the retry/backoff/dead-letter controller.
// Together these guarantee each distinct (image, parameters) pair is
// processed effectively once under concurrent submission, worker crashes
// and external-service instability.
package pipeline
