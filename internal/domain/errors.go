// Package domain defines the core business entities and errors.
package domain

import "errors"

// ErrValidation is returned when a domain entity fails validation.
// This is often wrapped with a more specific error message.
var ErrValidation = errors.New("validation failed")
