// Package api implements the HTTP surface of the receipt pipeline:
// submission, job status polling, receipt retrieval and dead-letter
// inspection. Handlers validate input, delegate to the service layer and
// translate service errors into sanitized HTTP responses.
package api
