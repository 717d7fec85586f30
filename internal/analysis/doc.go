// Package analysis defines the contract between the job pipeline and the
// external AI analysis service, including the failure taxonomy the pipeline
// relies on to distinguish retryable from permanent errors.
package analysis
