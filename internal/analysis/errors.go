package analysis

import "errors"

// Common errors returned by Analyzer implementations. The pipeline's retry
// controller branches on these: ErrTransient failures are requeued with
// backoff, everything wrapping ErrPermanent is dead-lettered immediately.
var (
	// ErrTransient is returned for temporary failures that might resolve on
	// retry: timeouts, upstream rate limiting, connection resets.
	ErrTransient = errors.New("transient analysis failure")

	// ErrPermanent is returned for failures that will never succeed on
	// retry, such as malformed or unreadable input.
	ErrPermanent = errors.New("permanent analysis failure")

	// ErrInvalidResponse is returned when the model response cannot be
	// parsed or is malformed. Permanent: the same input produces the same
	// response.
	ErrInvalidResponse = errors.New("invalid response from analysis service")

	// ErrContentBlocked is returned when the service blocks the content due
	// to safety filters. Permanent.
	ErrContentBlocked = errors.New("content blocked by analysis service safety filters")

	// ErrInvalidConfig is returned when the analyzer configuration is invalid.
	ErrInvalidConfig = errors.New("invalid analyzer configuration")
)

// IsTransient reports whether err should be treated as retryable.
// ErrInvalidResponse and ErrContentBlocked wrap ErrPermanent semantics and
// are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrContentBlocked) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err is a non-retryable analysis failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrContentBlocked)
}
