package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// maxRequestBody bounds request body size. Submissions carry a base64
// image, so the limit is generous but present.
const maxRequestBody = 16 << 20 // 16 MiB

// Global validator instance for reuse
var validate = validator.New()

// DecodeJSON decodes the request body into the given struct, enforcing the
// body size limit.
func DecodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
// Types carrying their own Validate method are validated through it.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
