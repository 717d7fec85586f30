package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ledgerlift/receipt-api/internal/analysis"
)

// IdentityKey derives the stable identity of an analysis request: a SHA-256
// digest over the image bytes and the canonical encoding of the processing
// parameters. Two requests with the same image and semantically equal
// parameters always produce the same key regardless of parameter ordering;
// any difference in either produces a different key.
func IdentityKey(image []byte, params map[string]string) string {
	h := sha256.New()
	h.Write(image)

	// Canonical parameter encoding: sorted keys, normalized values, with
	// separators so that key/value boundaries cannot alias each other.
	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] == "" {
			// Absent and empty parameters are the same request.
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(k))))
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(params[k])))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// IdentityForParams derives the identity key from the typed parameter
// schema used at the submission boundary.
func IdentityForParams(image []byte, params analysis.Params) string {
	return IdentityKey(image, map[string]string{
		"mode":     params.Mode,
		"language": params.Language,
	})
}
