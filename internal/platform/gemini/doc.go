// Package gemini implements the analysis.Analyzer interface using Google's
// Gemini API. It sends the submitted image with a mode-specific prompt,
// parses the structured JSON the model returns, and classifies failures
// into the analysis package's transient and permanent sentinel errors so
// the pipeline can decide between retry and dead-letter.
//
// The analyzer makes exactly one API call per Analyze invocation. Retry
// scheduling lives in the pipeline, not here.
package gemini
